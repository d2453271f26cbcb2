package models

import "time"

// PassMarker is stored in Text when a participant explicitly passes.
// Passed responses never appear in participant/public views or summaries.
const PassMarker = "__PASS__"

type Response struct {
	ID               string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID        string    `gorm:"size:36;not null;index" json:"session_id"`
	ParticipantID    string    `gorm:"size:36;not null;index" json:"participant_id"`
	PromptID         string    `gorm:"size:36;not null;index" json:"prompt_id"`
	RoundNumber      int       `gorm:"not null" json:"round_number"`
	Text             string    `gorm:"type:text;not null" json:"text"`
	AutomaticThought string    `gorm:"type:text" json:"automatic_thought,omitempty"`
	EmotionPre       *int      `json:"emotion_pre,omitempty"`
	EmotionPost      *int      `json:"emotion_post,omitempty"`
	Spotlighted      bool      `gorm:"not null;default:false" json:"spotlighted"`
	Hidden           bool      `gorm:"not null;default:false" json:"hidden"`
	SavedForFollowup bool      `gorm:"not null;default:false" json:"saved_for_followup"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// IsPass reports whether this response is an explicit pass.
func (r *Response) IsPass() bool {
	return r.Text == PassMarker
}
