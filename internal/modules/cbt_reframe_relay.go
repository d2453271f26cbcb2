package modules

import (
	"encoding/json"
	"errors"

	"session-relay-backend/internal/models"
)

const CBTReframeRelayID = "cbt_reframe_relay"

func init() {
	register(&cbtReframeRelay{})
}

// cbtReframeRelay is the stageless module: input is open whenever the
// session is IN_PROGRESS, and submissions may carry optional automatic
// thought and pre/post emotion ratings.
type cbtReframeRelay struct{}

func (m *cbtReframeRelay) ID() string          { return CBTReframeRelayID }
func (m *cbtReframeRelay) DisplayName() string { return "CBT Reframe Relay" }
func (m *cbtReframeRelay) SupportsPass() bool  { return false }

func (m *cbtReframeRelay) Instructions() string {
	return "Read the prompt, think of an alternative balanced thought and " +
		"submit it. Sharing your automatic thought or rating your emotions " +
		"before and after is optional. You can skip any prompt."
}

func (m *cbtReframeRelay) FacilitatorActions() []string {
	return nil
}

func (m *cbtReframeRelay) ValidatePrompt(p *models.Prompt) error {
	return validatePromptSpec(p)
}

type cbtInput struct {
	AlternativeThought string `json:"alternativeThought" validate:"required"`
	AutomaticThought   string `json:"automaticThought"`
	EmotionPre         *int   `json:"emotionPre" validate:"omitempty,min=0,max=10"`
	EmotionPost        *int   `json:"emotionPost" validate:"omitempty,min=0,max=10"`
}

func (m *cbtReframeRelay) ParseInput(raw json.RawMessage) (*Input, error) {
	var in cbtInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}
	if err := validate.Struct(in); err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}
	return &Input{
		Text:             in.AlternativeThought,
		AutomaticThought: in.AutomaticThought,
		EmotionPre:       in.EmotionPre,
		EmotionPost:      in.EmotionPost,
	}, nil
}

func (m *cbtReframeRelay) GenerateSummary(s *models.Session, responses []models.Response, participants []models.Participant) (*SummaryData, error) {
	saved := make([]SavedResponse, 0)
	for _, r := range responses {
		if !r.SavedForFollowup || r.IsPass() {
			continue
		}
		saved = append(saved, SavedResponse{
			ParticipantID:    r.ParticipantID,
			PseudonymID:      pseudonymFor(r.ParticipantID, participants),
			Text:             r.Text,
			AutomaticThought: r.AutomaticThought,
		})
	}
	return &SummaryData{
		ModuleID:       m.ID(),
		NumRounds:      s.NumRounds,
		AttendanceNote: attendanceNote(responses, participants),
		SavedResponses: saved,
	}, nil
}
