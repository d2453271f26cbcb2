package models

import (
	"time"

	"gorm.io/datatypes"
)

// Summary is generated exactly once when a facilitator ends a session.
// It is immutable after creation and carries its own retention deadline.
type Summary struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	SessionID      string         `gorm:"size:36;not null;uniqueIndex" json:"session_id"`
	ModuleID       string         `gorm:"size:64;not null" json:"module_id"`
	NumRounds      int            `gorm:"not null" json:"num_rounds"`
	AttendanceNote string         `gorm:"size:200;not null" json:"attendance_note"`
	SavedResponses datatypes.JSON `json:"saved_responses"`
	PurgeAfter     time.Time      `gorm:"not null;index" json:"purge_after"`
	CreatedAt      time.Time      `json:"created_at"`
}
