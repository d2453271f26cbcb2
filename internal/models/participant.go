package models

import "time"

type Participant struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	SessionID   string     `gorm:"size:36;not null;index" json:"session_id"`
	Nickname    string     `gorm:"size:100;not null" json:"nickname"`
	PseudonymID string     `gorm:"size:100" json:"pseudonym_id,omitempty"`
	ConnID      *string    `gorm:"size:36;index" json:"-"`
	JoinedAt    time.Time  `json:"joined_at"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty"`
}
