package modules

import (
	"encoding/json"
	"errors"

	"session-relay-backend/internal/models"
	"session-relay-backend/internal/session"
)

const ThoughtReframeRelayID = "thought_reframe_relay"

func init() {
	register(&thoughtReframeRelay{})
}

// thoughtReframeRelay is the staged module: participants reframe a
// "stuck thought" prompt, the facilitator moderates, and selected
// reframes are revealed to the group round by round.
type thoughtReframeRelay struct{}

func (m *thoughtReframeRelay) ID() string          { return ThoughtReframeRelayID }
func (m *thoughtReframeRelay) DisplayName() string { return "Thought Reframe Relay" }
func (m *thoughtReframeRelay) SupportsPass() bool  { return true }

func (m *thoughtReframeRelay) Instructions() string {
	return "Read the stuck thought, think of a more balanced way to view it, " +
		"and share your reframe - or pass, that's always okay. Selected " +
		"reframes are revealed anonymously and discussed together."
}

func (m *thoughtReframeRelay) FacilitatorActions() []string {
	return []string{
		session.ActionOpenForResponses,
		session.ActionCloseInput,
		session.ActionRevealSelected,
		session.ActionContinueToDiscussion,
		session.ActionPauseSession,
		session.ActionRedFlagPrompt,
	}
}

func (m *thoughtReframeRelay) ValidatePrompt(p *models.Prompt) error {
	return validatePromptSpec(p)
}

type thoughtReframeInput struct {
	Reframe string `json:"reframe"`
	IsPass  bool   `json:"isPass"`
}

// ParseInput accepts a reframe or a pass, never both and never neither.
func (m *thoughtReframeRelay) ParseInput(raw json.RawMessage) (*Input, error) {
	var in thoughtReframeInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}
	if in.IsPass == (in.Reframe != "") {
		return nil, ErrInvalidInput
	}
	if in.IsPass {
		return &Input{IsPass: true, Text: models.PassMarker}, nil
	}
	return &Input{Text: in.Reframe}, nil
}

func (m *thoughtReframeRelay) GenerateSummary(s *models.Session, responses []models.Response, participants []models.Participant) (*SummaryData, error) {
	saved := make([]SavedResponse, 0)
	for _, r := range responses {
		if !r.SavedForFollowup || r.IsPass() || r.Text == "" {
			continue
		}
		saved = append(saved, SavedResponse{
			ParticipantID: r.ParticipantID,
			PseudonymID:   pseudonymFor(r.ParticipantID, participants),
			Text:          r.Text,
		})
	}
	return &SummaryData{
		ModuleID:       m.ID(),
		NumRounds:      s.NumRounds,
		AttendanceNote: attendanceNote(responses, participants),
		SavedResponses: saved,
	}, nil
}

// Stage reads the sub-state out of the session's module-state blob.
// A missing or unreadable blob means the session has not started: LOBBY.
func (m *thoughtReframeRelay) Stage(s *models.Session) session.Stage {
	if len(s.ModuleState) == 0 {
		return session.StageLobby
	}
	var blob map[string]any
	if err := json.Unmarshal(s.ModuleState, &blob); err != nil {
		return session.StageLobby
	}
	if st, ok := blob["stage"].(string); ok && st != "" {
		return session.Stage(st)
	}
	return session.StageLobby
}

// SetStage rewrites only the stage key, preserving anything else a
// future module revision stores in the blob.
func (m *thoughtReframeRelay) SetStage(s *models.Session, st session.Stage) error {
	blob := map[string]any{}
	if len(s.ModuleState) > 0 {
		if err := json.Unmarshal(s.ModuleState, &blob); err != nil {
			blob = map[string]any{}
		}
	}
	blob["stage"] = string(st)
	raw, err := json.Marshal(blob)
	if err != nil {
		return err
	}
	s.ModuleState = raw
	return nil
}
