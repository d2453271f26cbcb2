package models

import (
	"time"

	"gorm.io/datatypes"
)

type Session struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	RoomCode        string         `gorm:"size:6;uniqueIndex" json:"room_code"`
	FacilitatorID   string         `gorm:"size:36;not null;index" json:"facilitator_id"`
	CareTeamID      string         `gorm:"size:36" json:"care_team_id,omitempty"`
	ModuleID        string         `gorm:"size:64;not null" json:"module_id"`
	PromptPackID    string         `gorm:"size:36" json:"prompt_pack_id,omitempty"`
	Status          string         `gorm:"size:20;not null;default:'CREATED'" json:"status"`
	CurrentRound    int            `gorm:"not null;default:0" json:"current_round"`
	NumRounds       int            `gorm:"not null;default:1" json:"num_rounds"`
	CurrentPromptID *string        `gorm:"size:36" json:"current_prompt_id,omitempty"`
	IntroCompleted  bool           `gorm:"not null;default:false" json:"intro_completed"`
	IntroMediaID    *string        `gorm:"size:36" json:"intro_media_id,omitempty"`
	IntroMedia      *MediaAsset    `gorm:"foreignKey:IntroMediaID" json:"intro_media,omitempty"`
	ModuleState     datatypes.JSON `json:"module_state,omitempty"`
	PurgeAfter      time.Time      `gorm:"not null;index" json:"purge_after"`
	Participants    []Participant  `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"participants,omitempty"`
	Responses       []Response     `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"responses,omitempty"`
	Summary         *Summary       `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"summary,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	EndedAt         *time.Time     `json:"ended_at,omitempty"`
}

const (
	SessionStatusCreated    = "CREATED"
	SessionStatusLobby      = "LOBBY"
	SessionStatusIntro      = "INTRO"
	SessionStatusInProgress = "IN_PROGRESS"
	SessionStatusEnded      = "ENDED"
)
