// Package projection derives the role-scoped views of session state.
// Everything here is a pure function of its inputs: the broadcast router
// re-fetches state and calls these to build one full snapshot per
// audience. No partial updates are ever produced.
package projection

import (
	"encoding/json"
	"time"

	"session-relay-backend/internal/models"
	"session-relay-backend/internal/session"
)

type Role string

const (
	RoleFacilitator Role = "facilitator"
	RoleParticipant Role = "participant"
	RoleViewer      Role = "viewer"
)

type IntroMedia struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

type SessionState struct {
	Status          string      `json:"status"`
	Stage           string      `json:"stage,omitempty"`
	CurrentRound    int         `json:"current_round"`
	NumRounds       int         `json:"num_rounds"`
	IntroCompleted  bool        `json:"intro_completed"`
	CurrentPromptID string      `json:"current_prompt_id,omitempty"`
	IntroMedia      *IntroMedia `json:"intro_media,omitempty"`
	// Paused is a display hint only; it is never persisted and clears
	// on the next regular state push.
	Paused bool `json:"paused,omitempty"`
}

type CurrentPrompt struct {
	PromptID    string          `json:"prompt_id"`
	Text        string          `json:"text"`
	RoundNumber int             `json:"round_number"`
	TopicTags   json.RawMessage `json:"topic_tags,omitempty"`
	Intensity   int             `json:"intensity"`
}

// FacilitatorResponse carries everything, identities and flags included.
type FacilitatorResponse struct {
	ID               string    `json:"id"`
	ParticipantID    string    `json:"participant_id"`
	Nickname         string    `json:"nickname"`
	PseudonymID      string    `json:"pseudonym_id,omitempty"`
	PromptID         string    `json:"prompt_id"`
	RoundNumber      int       `json:"round_number"`
	Text             string    `json:"text"`
	IsPass           bool      `json:"is_pass"`
	AutomaticThought string    `json:"automatic_thought,omitempty"`
	EmotionPre       *int      `json:"emotion_pre,omitempty"`
	EmotionPost      *int      `json:"emotion_post,omitempty"`
	Spotlighted      bool      `json:"spotlighted"`
	Hidden           bool      `json:"hidden"`
	SavedForFollowup bool      `json:"saved_for_followup"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// PublicResponse is the anonymized shape shown to participants and
// viewers. It never carries a participant identifier.
type PublicResponse struct {
	ID               string `json:"id"`
	Text             string `json:"text"`
	AutomaticThought string `json:"automatic_thought,omitempty"`
	EmotionPre       *int   `json:"emotion_pre,omitempty"`
	EmotionPost      *int   `json:"emotion_post,omitempty"`
}

type ResponsesUpdate struct {
	// Responses is populated for the facilitator audience only.
	Responses []FacilitatorResponse `json:"responses,omitempty"`
	// Spotlighted is populated for participant/viewer audiences.
	Spotlighted []PublicResponse `json:"spotlighted,omitempty"`
	// ReceivedCount is the anonymous progress counter: non-pass
	// responses received for the current prompt. It is the only
	// in-progress signal shown outside the facilitator view.
	ReceivedCount int `json:"received_count"`
}

// ParticipantInfo strips the pseudonymous id for every role; only the
// facilitator REST endpoint exposes it.
type ParticipantInfo struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

type Projection struct {
	SessionState SessionState      `json:"session_state"`
	Responses    ResponsesUpdate   `json:"responses"`
	Participants []ParticipantInfo `json:"participants"`
}

func SessionStateOf(s *models.Session, stage session.Stage) SessionState {
	state := SessionState{
		Status:         s.Status,
		Stage:          string(stage),
		CurrentRound:   s.CurrentRound,
		NumRounds:      s.NumRounds,
		IntroCompleted: s.IntroCompleted,
	}
	if s.CurrentPromptID != nil {
		state.CurrentPromptID = *s.CurrentPromptID
	}
	if s.IntroMedia != nil {
		state.IntroMedia = &IntroMedia{ID: s.IntroMedia.ID, URL: s.IntroMedia.URL, Type: s.IntroMedia.Type}
	}
	return state
}

func PromptOf(p *models.Prompt, round int) CurrentPrompt {
	return CurrentPrompt{
		PromptID:    p.ID,
		Text:        p.Text,
		RoundNumber: round,
		TopicTags:   json.RawMessage(p.TopicTags),
		Intensity:   p.Intensity,
	}
}

// FacilitatorResponses maps every response with its participant's
// identity attached.
func FacilitatorResponses(responses []models.Response, participants []models.Participant) []FacilitatorResponse {
	nicknames := make(map[string]models.Participant, len(participants))
	for _, p := range participants {
		nicknames[p.ID] = p
	}
	out := make([]FacilitatorResponse, 0, len(responses))
	for _, r := range responses {
		fr := FacilitatorResponse{
			ID:               r.ID,
			ParticipantID:    r.ParticipantID,
			PromptID:         r.PromptID,
			RoundNumber:      r.RoundNumber,
			IsPass:           r.IsPass(),
			AutomaticThought: r.AutomaticThought,
			EmotionPre:       r.EmotionPre,
			EmotionPost:      r.EmotionPost,
			Spotlighted:      r.Spotlighted,
			Hidden:           r.Hidden,
			SavedForFollowup: r.SavedForFollowup,
			SubmittedAt:      r.SubmittedAt,
		}
		if !fr.IsPass {
			fr.Text = r.Text
		}
		if p, ok := nicknames[r.ParticipantID]; ok {
			fr.Nickname = p.Nickname
			fr.PseudonymID = p.PseudonymID
		}
		out = append(out, fr)
	}
	return out
}

// SpotlightedResponses filters to spotlighted, non-hidden, non-pass
// content and anonymizes it.
func SpotlightedResponses(responses []models.Response) []PublicResponse {
	out := make([]PublicResponse, 0)
	for _, r := range responses {
		if !r.Spotlighted || r.Hidden || r.IsPass() {
			continue
		}
		out = append(out, PublicResponse{
			ID:               r.ID,
			Text:             r.Text,
			AutomaticThought: r.AutomaticThought,
			EmotionPre:       r.EmotionPre,
			EmotionPost:      r.EmotionPost,
		})
	}
	return out
}

// ReceivedCount counts non-pass responses for the given prompt.
func ReceivedCount(responses []models.Response, promptID string) int {
	n := 0
	for _, r := range responses {
		if r.PromptID == promptID && !r.IsPass() {
			n++
		}
	}
	return n
}

func ParticipantList(participants []models.Participant) []ParticipantInfo {
	out := make([]ParticipantInfo, 0, len(participants))
	for _, p := range participants {
		out = append(out, ParticipantInfo{ID: p.ID, Nickname: p.Nickname})
	}
	return out
}

// Build assembles the full snapshot one audience sees.
func Build(s *models.Session, stage session.Stage, responses []models.Response, participants []models.Participant, role Role) Projection {
	proj := Projection{
		SessionState: SessionStateOf(s, stage),
		Participants: ParticipantList(participants),
	}
	if role == RoleFacilitator {
		proj.Responses.Responses = FacilitatorResponses(responses, participants)
	} else {
		proj.Responses.Spotlighted = SpotlightedResponses(responses)
	}
	if s.CurrentPromptID != nil {
		proj.Responses.ReceivedCount = ReceivedCount(responses, *s.CurrentPromptID)
	}
	return proj
}
