// Package modules holds the pluggable activity types. A module supplies
// the validation schemas for prompts and participant input, the
// facilitator actions it supports, and the session summary algorithm.
// The core never branches on a module id; it only talks to this
// interface.
package modules

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"session-relay-backend/internal/models"
	"session-relay-backend/internal/session"
)

var (
	ErrNotFound      = errors.New("module not found")
	ErrInvalidInput  = errors.New("invalid participant input")
	ErrInvalidPrompt = errors.New("invalid prompt")
)

// validate is shared by all module schemas, mirroring the binding engine
// the HTTP layer already uses.
var validate = validator.New()

// Input is a participant submission normalized by a module schema.
type Input struct {
	Text             string
	IsPass           bool
	AutomaticThought string
	EmotionPre       *int
	EmotionPost      *int
}

// SavedResponse is one explicitly saved response inside a summary.
type SavedResponse struct {
	ParticipantID    string `json:"participant_id"`
	PseudonymID      string `json:"pseudonym_id,omitempty"`
	Text             string `json:"text"`
	AutomaticThought string `json:"automatic_thought,omitempty"`
}

// SummaryData is the payload a module produces when a session ends.
// It contains only explicitly saved responses, never passes.
type SummaryData struct {
	ModuleID       string          `json:"module_id"`
	NumRounds      int             `json:"num_rounds"`
	AttendanceNote string          `json:"attendance_note"`
	SavedResponses []SavedResponse `json:"saved_responses"`
}

type Module interface {
	ID() string
	DisplayName() string
	Instructions() string

	// SupportsPass reports whether participants may submit an explicit
	// pass instead of content.
	SupportsPass() bool

	FacilitatorActions() []string

	ValidatePrompt(p *models.Prompt) error

	// ParseInput validates a raw submitResponse payload against the
	// module schema and normalizes it. Schema failures wrap
	// ErrInvalidInput and must not mutate any state.
	ParseInput(raw json.RawMessage) (*Input, error)

	// GenerateSummary is deterministic over its inputs and never
	// includes pass-marked or non-saved responses.
	GenerateSummary(s *models.Session, responses []models.Response, participants []models.Participant) (*SummaryData, error)
}

// Staged is implemented by modules that run the parallel sub-state
// machine. The sub-state lives in the session's opaque module-state blob
// and is only ever (de)serialized here.
type Staged interface {
	Module
	Stage(s *models.Session) session.Stage
	SetStage(s *models.Session, st session.Stage) error
}

type promptSpec struct {
	Text      string `validate:"required"`
	Intensity int    `validate:"min=1,max=5"`
}

func validatePromptSpec(p *models.Prompt) error {
	if err := validate.Struct(promptSpec{Text: p.Text, Intensity: p.Intensity}); err != nil {
		return errors.Join(ErrInvalidPrompt, err)
	}
	return nil
}

// attendanceNote derives the summary attendance line from the ratio of
// unique responding participants to total participants. No behavioral
// metrics beyond that.
func attendanceNote(responses []models.Response, participants []models.Participant) string {
	unique := make(map[string]struct{})
	for _, r := range responses {
		unique[r.ParticipantID] = struct{}{}
	}
	if len(unique) == len(participants) {
		return "present"
	}
	return fmt.Sprintf("partial (%d of %d participants engaged)", len(unique), len(participants))
}

func pseudonymFor(participantID string, participants []models.Participant) string {
	for _, p := range participants {
		if p.ID == participantID {
			return p.PseudonymID
		}
	}
	return ""
}
