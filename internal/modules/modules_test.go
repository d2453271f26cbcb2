package modules

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"session-relay-backend/internal/models"
	"session-relay-backend/internal/session"
)

func TestRegistry(t *testing.T) {
	mod, err := Get(ThoughtReframeRelayID)
	require.NoError(t, err)
	assert.Equal(t, ThoughtReframeRelayID, mod.ID())

	_, err = Get("no_such_module")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Len(t, All(), 2)
}

func TestThoughtReframeParseInput(t *testing.T) {
	mod, err := Get(ThoughtReframeRelayID)
	require.NoError(t, err)
	require.True(t, mod.SupportsPass())

	in, err := mod.ParseInput(json.RawMessage(`{"reframe":"maybe it went fine"}`))
	require.NoError(t, err)
	assert.Equal(t, "maybe it went fine", in.Text)
	assert.False(t, in.IsPass)

	in, err = mod.ParseInput(json.RawMessage(`{"isPass":true}`))
	require.NoError(t, err)
	assert.True(t, in.IsPass)
	assert.Equal(t, models.PassMarker, in.Text)
}

func TestThoughtReframeParseInputRejects(t *testing.T) {
	mod, _ := Get(ThoughtReframeRelayID)

	// neither text nor pass
	_, err := mod.ParseInput(json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	// both at once
	_, err = mod.ParseInput(json.RawMessage(`{"reframe":"x","isPass":true}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = mod.ParseInput(json.RawMessage(`not json`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCBTParseInput(t *testing.T) {
	mod, err := Get(CBTReframeRelayID)
	require.NoError(t, err)
	require.False(t, mod.SupportsPass())

	in, err := mod.ParseInput(json.RawMessage(
		`{"alternativeThought":"it was one meeting","automaticThought":"I always fail","emotionPre":8,"emotionPost":3}`))
	require.NoError(t, err)
	assert.Equal(t, "it was one meeting", in.Text)
	assert.Equal(t, "I always fail", in.AutomaticThought)
	require.NotNil(t, in.EmotionPre)
	assert.Equal(t, 8, *in.EmotionPre)
	require.NotNil(t, in.EmotionPost)
	assert.Equal(t, 3, *in.EmotionPost)

	// optional fields may be absent
	in, err = mod.ParseInput(json.RawMessage(`{"alternativeThought":"solo thought"}`))
	require.NoError(t, err)
	assert.Nil(t, in.EmotionPre)
}

func TestCBTParseInputRejects(t *testing.T) {
	mod, _ := Get(CBTReframeRelayID)

	_, err := mod.ParseInput(json.RawMessage(`{}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = mod.ParseInput(json.RawMessage(`{"alternativeThought":"x","emotionPre":11}`))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = mod.ParseInput(json.RawMessage(`{"alternativeThought":"x","emotionPost":-1}`))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestValidatePrompt(t *testing.T) {
	mod, _ := Get(ThoughtReframeRelayID)

	assert.NoError(t, mod.ValidatePrompt(&models.Prompt{Text: "a stuck thought", Intensity: 3}))
	assert.ErrorIs(t, mod.ValidatePrompt(&models.Prompt{Intensity: 3}), ErrInvalidPrompt)
	assert.ErrorIs(t, mod.ValidatePrompt(&models.Prompt{Text: "x", Intensity: 0}), ErrInvalidPrompt)
	assert.ErrorIs(t, mod.ValidatePrompt(&models.Prompt{Text: "x", Intensity: 6}), ErrInvalidPrompt)
}

func summaryFixture() (*models.Session, []models.Response, []models.Participant) {
	sess := &models.Session{ID: "s1", NumRounds: 4}
	participants := make([]models.Participant, 0, 10)
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9", "p10"} {
		participants = append(participants, models.Participant{
			ID: id, SessionID: "s1", PseudonymID: "pseud-" + id,
		})
	}
	responses := []models.Response{
		{ID: "r1", ParticipantID: "p1", Text: "kept", SavedForFollowup: true},
		{ID: "r2", ParticipantID: "p2", Text: models.PassMarker, SavedForFollowup: true},
		{ID: "r3", ParticipantID: "p3", Text: "not saved"},
		{ID: "r4", ParticipantID: "p4", Text: "also kept", SavedForFollowup: true},
		{ID: "r5", ParticipantID: "p5", Text: models.PassMarker},
		{ID: "r6", ParticipantID: "p6", Text: "plain"},
	}
	return sess, responses, participants
}

func TestGenerateSummarySavedResponses(t *testing.T) {
	mod, _ := Get(ThoughtReframeRelayID)
	sess, responses, participants := summaryFixture()

	data, err := mod.GenerateSummary(sess, responses, participants)
	require.NoError(t, err)

	assert.Equal(t, ThoughtReframeRelayID, data.ModuleID)
	assert.Equal(t, 4, data.NumRounds)

	// only explicitly saved, non-pass responses survive into the summary
	require.Len(t, data.SavedResponses, 2)
	assert.Equal(t, "kept", data.SavedResponses[0].Text)
	assert.Equal(t, "pseud-p1", data.SavedResponses[0].PseudonymID)
	assert.Equal(t, "also kept", data.SavedResponses[1].Text)
}

func TestGenerateSummaryAttendanceNote(t *testing.T) {
	mod, _ := Get(ThoughtReframeRelayID)
	sess, responses, participants := summaryFixture()

	data, err := mod.GenerateSummary(sess, responses, participants)
	require.NoError(t, err)
	assert.Equal(t, "partial (6 of 10 participants engaged)", data.AttendanceNote)

	data, err = mod.GenerateSummary(sess, responses, participants[:6])
	require.NoError(t, err)
	assert.Equal(t, "present", data.AttendanceNote)
}

func TestStageRoundTrip(t *testing.T) {
	mod, _ := Get(ThoughtReframeRelayID)
	staged, ok := mod.(Staged)
	require.True(t, ok)

	sess := &models.Session{}
	assert.Equal(t, session.StageLobby, staged.Stage(sess), "empty blob means lobby")

	require.NoError(t, staged.SetStage(sess, session.StageInput))
	assert.Equal(t, session.StageInput, staged.Stage(sess))

	// foreign keys in the blob survive a stage write
	sess.ModuleState = []byte(`{"stage":"INPUT","note":"keep me"}`)
	require.NoError(t, staged.SetStage(sess, session.StageModeration))
	var blob map[string]any
	require.NoError(t, json.Unmarshal(sess.ModuleState, &blob))
	assert.Equal(t, "MODERATION", blob["stage"])
	assert.Equal(t, "keep me", blob["note"])
}

func TestCBTIsStageless(t *testing.T) {
	mod, _ := Get(CBTReframeRelayID)
	_, ok := mod.(Staged)
	assert.False(t, ok)
	assert.Empty(t, mod.FacilitatorActions())
}
