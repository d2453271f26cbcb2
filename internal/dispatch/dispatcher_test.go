package dispatch

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"session-relay-backend/internal/models"
	"session-relay-backend/internal/modules"
	"session-relay-backend/internal/session"
	"session-relay-backend/internal/ws"
)

type testRig struct {
	d     *Dispatcher
	store *memStore
	hub   *fakeHub
	bcast *fakeBroadcaster
	marks map[*websocket.Conn]int
}

func newRig() *testRig {
	st := newMemStore()
	hub := newFakeHub()
	bcast := &fakeBroadcaster{}
	return &testRig{
		d:     New(st, hub, bcast, Options{SpotlightMax: 3}),
		store: st,
		hub:   hub,
		bcast: bcast,
		marks: make(map[*websocket.Conn]int),
	}
}

func facilitatorClient(id string) *Client {
	return &Client{Conn: &websocket.Conn{}, ConnID: "conn-" + id, UserID: id}
}

func participantClient(id string) *Client {
	return &Client{Conn: &websocket.Conn{}, ConnID: "conn-" + id}
}

func (r *testRig) send(t *testing.T, client *Client, role, cmdType, sessionID, payload string) {
	t.Helper()
	raw := fmt.Sprintf(`{"role":%q,"type":%q`, role, cmdType)
	if sessionID != "" {
		raw += fmt.Sprintf(`,"sessionId":%q`, sessionID)
	}
	if payload != "" {
		raw += `,"payload":` + payload
	}
	raw += `}`
	r.marks[client.Conn] = len(r.hub.sends[client.Conn])
	r.d.Dispatch(client, []byte(raw))
}

func (r *testRig) requireNoError(t *testing.T, client *Client) {
	t.Helper()
	code, ok := r.hub.errorSince(client.Conn, r.marks[client.Conn])
	require.False(t, ok, "unexpected error %s", code)
}

func (r *testRig) requireError(t *testing.T, client *Client, wantCode string) {
	t.Helper()
	code, ok := r.hub.errorSince(client.Conn, r.marks[client.Conn])
	require.True(t, ok, "expected error %s, got none", wantCode)
	assert.Equal(t, wantCode, code)
}

func (r *testRig) seedSession(moduleID, status string, stage session.Stage) *models.Session {
	sess := &models.Session{
		ID:            "sess-1",
		RoomCode:      "ABCDEF",
		FacilitatorID: "fac-1",
		ModuleID:      moduleID,
		Status:        status,
		NumRounds:     3,
		PurgeAfter:    time.Now().Add(72 * time.Hour),
		CreatedAt:     time.Now(),
	}
	if stage != "" {
		sess.ModuleState = []byte(fmt.Sprintf(`{"stage":%q}`, stage))
	}
	r.store.sessions[sess.ID] = sess
	return sess
}

func (r *testRig) seedParticipant(id, sessionID, connID string) *models.Participant {
	p := &models.Participant{
		ID: id, SessionID: sessionID, Nickname: "n-" + id,
		ConnID: &connID, JoinedAt: time.Now(),
	}
	r.store.participants[id] = p
	return p
}

func (r *testRig) stageOf(t *testing.T, sessionID string) session.Stage {
	t.Helper()
	sess := r.store.sessions[sessionID]
	mod, err := modules.Get(sess.ModuleID)
	require.NoError(t, err)
	staged, ok := mod.(modules.Staged)
	require.True(t, ok)
	return staged.Stage(sess)
}

func TestCreateSession(t *testing.T) {
	rig := newRig()
	client := facilitatorClient("fac-1")

	rig.send(t, client, RoleFacilitator, "createSession", "",
		`{"careTeamId":"team-9","moduleId":"thought_reframe_relay","numRounds":3}`)
	rig.requireNoError(t, client)

	require.Len(t, rig.store.sessions, 1)
	var sess *models.Session
	for _, s := range rig.store.sessions {
		sess = s
	}
	assert.Equal(t, models.SessionStatusCreated, sess.Status)
	assert.Equal(t, "fac-1", sess.FacilitatorID)
	assert.Len(t, sess.RoomCode, 6)

	// the join ack carries the shareable room code
	var joined ws.Envelope
	for _, env := range rig.hub.sends[client.Conn] {
		if env.Type == ws.TypeJoined {
			joined = env
		}
	}
	require.NotNil(t, joined.Payload)
	assert.Equal(t, sess.RoomCode, joined.Payload.(map[string]string)["roomCode"])
	assert.Equal(t, []string{sess.ID}, rig.bcast.broadcasts)
}

func TestCreateSessionValidation(t *testing.T) {
	rig := newRig()
	client := facilitatorClient("fac-1")

	rig.send(t, client, RoleFacilitator, "createSession", "",
		`{"moduleId":"no_such_module","numRounds":3}`)
	rig.requireError(t, client, "MODULE_NOT_FOUND")

	rig.send(t, client, RoleFacilitator, "createSession", "",
		`{"moduleId":"thought_reframe_relay","numRounds":0}`)
	rig.requireError(t, client, "INVALID_PAYLOAD")
}

func TestFacilitatorCommandsNeedAuthenticatedSocket(t *testing.T) {
	rig := newRig()
	anon := participantClient("p-1")

	rig.send(t, anon, RoleFacilitator, "createSession", "",
		`{"moduleId":"thought_reframe_relay","numRounds":3}`)
	rig.requireError(t, anon, "INVALID_PAYLOAD")
	assert.Empty(t, rig.store.sessions)
}

func TestParticipantJoinPromotesCreatedToLobby(t *testing.T) {
	rig := newRig()
	rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusCreated, "")
	client := participantClient("p-1")

	rig.send(t, client, RoleParticipant, "join", "",
		`{"roomCode":"ABCDEF","nickname":"Ana","pseudonymId":"pseud-1"}`)
	rig.requireNoError(t, client)

	assert.Equal(t, models.SessionStatusLobby, rig.store.sessions["sess-1"].Status)
	require.Len(t, rig.store.participants, 1)
	assert.Equal(t, []string{"sess-1/participant"}, rig.bcast.snapshots)
	assert.Contains(t, rig.hub.subs[client.Conn], "session:sess-1")

	// a second join does not bounce the status
	second := participantClient("p-2")
	rig.send(t, second, RoleParticipant, "join", "",
		`{"roomCode":"ABCDEF","nickname":"Ben","pseudonymId":"pseud-2"}`)
	rig.requireNoError(t, second)
	assert.Equal(t, models.SessionStatusLobby, rig.store.sessions["sess-1"].Status)
}

func TestParticipantJoinRejections(t *testing.T) {
	rig := newRig()
	rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusEnded, "")

	client := participantClient("p-1")
	rig.send(t, client, RoleParticipant, "join", "",
		`{"roomCode":"ABCDEF","nickname":"Ana"}`)
	rig.requireError(t, client, "SESSION_ENDED")

	rig.send(t, client, RoleParticipant, "join", "",
		`{"roomCode":"abcdef","nickname":"Ana"}`)
	rig.requireError(t, client, "INVALID_PAYLOAD")

	rig.send(t, client, RoleParticipant, "join", "",
		`{"roomCode":"ZZZZZZ","nickname":"Ana"}`)
	rig.requireError(t, client, "SESSION_NOT_FOUND")
}

func TestSubmitRequiresOpenInput(t *testing.T) {
	rig := newRig()
	sess := rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusInProgress, session.StagePromptReading)
	rig.seedParticipant("p-1", sess.ID, "conn-p-1")
	client := participantClient("p-1")

	rig.send(t, client, RoleParticipant, "submitResponse", sess.ID,
		`{"promptId":"prompt-1","reframe":"a calmer view"}`)
	rig.requireError(t, client, "INPUT_NOT_OPEN")
	assert.Empty(t, rig.store.responses)

	sess.ModuleState = []byte(`{"stage":"INPUT"}`)
	rig.send(t, client, RoleParticipant, "submitResponse", sess.ID,
		`{"promptId":"prompt-1","reframe":"a calmer view"}`)
	rig.requireNoError(t, client)

	require.Len(t, rig.store.responses, 1)
	for _, resp := range rig.store.responses {
		assert.Equal(t, "a calmer view", resp.Text)
		assert.False(t, resp.IsPass())
	}
	// the submit also counts as activity
	assert.NotNil(t, rig.store.participants["p-1"].LastSeenAt)
}

func TestSubmitPass(t *testing.T) {
	rig := newRig()
	sess := rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusInProgress, session.StageInput)
	rig.seedParticipant("p-1", sess.ID, "conn-p-1")
	client := participantClient("p-1")

	rig.send(t, client, RoleParticipant, "submitResponse", sess.ID,
		`{"promptId":"prompt-1","isPass":true}`)
	rig.requireNoError(t, client)

	require.Len(t, rig.store.responses, 1)
	for _, resp := range rig.store.responses {
		assert.True(t, resp.IsPass())
	}
}

func TestStagelessSubmitGatesOnStatus(t *testing.T) {
	rig := newRig()
	sess := rig.seedSession(modules.CBTReframeRelayID, models.SessionStatusLobby, "")
	rig.seedParticipant("p-1", sess.ID, "conn-p-1")
	client := participantClient("p-1")

	rig.send(t, client, RoleParticipant, "submitResponse", sess.ID,
		`{"promptId":"prompt-1","alternativeThought":"one bad day"}`)
	rig.requireError(t, client, "INPUT_NOT_OPEN")

	sess.Status = models.SessionStatusInProgress
	rig.send(t, client, RoleParticipant, "submitResponse", sess.ID,
		`{"promptId":"prompt-1","alternativeThought":"one bad day","emotionPre":7}`)
	rig.requireNoError(t, client)
	require.Len(t, rig.store.responses, 1)
}

func TestSubmitWithoutJoinedConnection(t *testing.T) {
	rig := newRig()
	sess := rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusInProgress, session.StageInput)
	stranger := participantClient("ghost")

	rig.send(t, stranger, RoleParticipant, "submitResponse", sess.ID,
		`{"promptId":"prompt-1","reframe":"x"}`)
	rig.requireError(t, stranger, "PARTICIPANT_NOT_FOUND")
}

func TestSkipTouchesWithoutWriting(t *testing.T) {
	rig := newRig()
	sess := rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusInProgress, session.StageInput)
	rig.seedParticipant("p-1", sess.ID, "conn-p-1")
	client := participantClient("p-1")

	rig.send(t, client, RoleParticipant, "skip", sess.ID, "")
	rig.requireNoError(t, client)

	assert.Empty(t, rig.store.responses, "skip never creates a response row")
	assert.NotNil(t, rig.store.participants["p-1"].LastSeenAt)

	// skipping is legal in any sub-state
	sess.ModuleState = []byte(`{"stage":"MODERATION"}`)
	rig.send(t, client, RoleParticipant, "skip", sess.ID, "")
	rig.requireNoError(t, client)
}

func TestSpotlightCap(t *testing.T) {
	rig := newRig()
	sess := rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusInProgress, session.StageModeration)
	for i := 0; i < 4; i++ {
		rig.store.responses[fmt.Sprintf("r%d", i)] = &models.Response{
			ID: fmt.Sprintf("r%d", i), SessionID: sess.ID, ParticipantID: "p-1",
			PromptID: "prompt-1", Text: "t", Spotlighted: i < 3,
		}
	}
	client := facilitatorClient("fac-1")

	// cap is 3 in this rig; a fourth pick is refused
	rig.send(t, client, RoleFacilitator, "spotlightResponse", "",
		`{"sessionId":"sess-1","responseId":"r3"}`)
	rig.requireError(t, client, "SPOTLIGHT_LIMIT")
	assert.False(t, rig.store.responses["r3"].Spotlighted)

	// re-spotlighting an already spotlighted response stays legal
	rig.send(t, client, RoleFacilitator, "spotlightResponse", "",
		`{"sessionId":"sess-1","responseId":"r0"}`)
	rig.requireNoError(t, client)

	// hiding one frees a slot
	rig.send(t, client, RoleFacilitator, "hideResponse", "",
		`{"sessionId":"sess-1","responseId":"r1"}`)
	rig.send(t, client, RoleFacilitator, "spotlightResponse", "",
		`{"sessionId":"sess-1","responseId":"r3"}`)
	rig.requireNoError(t, client)
	assert.True(t, rig.store.responses["r3"].Spotlighted)
}

func TestSpotlightRejectsHiddenAndPass(t *testing.T) {
	rig := newRig()
	sess := rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusInProgress, session.StageModeration)
	rig.store.responses["hidden"] = &models.Response{
		ID: "hidden", SessionID: sess.ID, PromptID: "prompt-1", Text: "t", Hidden: true,
	}
	rig.store.responses["pass"] = &models.Response{
		ID: "pass", SessionID: sess.ID, PromptID: "prompt-1", Text: models.PassMarker,
	}
	client := facilitatorClient("fac-1")

	rig.send(t, client, RoleFacilitator, "spotlightResponse", "",
		`{"sessionId":"sess-1","responseId":"hidden"}`)
	rig.requireError(t, client, "INVALID_PAYLOAD")

	rig.send(t, client, RoleFacilitator, "spotlightResponse", "",
		`{"sessionId":"sess-1","responseId":"pass"}`)
	rig.requireError(t, client, "INVALID_PAYLOAD")
}

func TestHideRemovesSpotlight(t *testing.T) {
	rig := newRig()
	sess := rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusInProgress, session.StageModeration)
	rig.store.responses["r1"] = &models.Response{
		ID: "r1", SessionID: sess.ID, PromptID: "prompt-1", Text: "t", Spotlighted: true,
	}
	client := facilitatorClient("fac-1")

	rig.send(t, client, RoleFacilitator, "hideResponse", "",
		`{"sessionId":"sess-1","responseId":"r1"}`)
	rig.requireNoError(t, client)
	assert.True(t, rig.store.responses["r1"].Hidden)
	assert.False(t, rig.store.responses["r1"].Spotlighted)
}

func TestNextPrompt(t *testing.T) {
	rig := newRig()
	rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusLobby, session.StageLobby)
	rig.store.prompts["prompt-1"] = &models.Prompt{ID: "prompt-1", Text: "a stuck thought", Intensity: 2}
	client := facilitatorClient("fac-1")

	rig.send(t, client, RoleFacilitator, "nextPrompt", "",
		`{"sessionId":"sess-1","promptId":"prompt-1"}`)
	rig.requireNoError(t, client)

	sess := rig.store.sessions["sess-1"]
	assert.Equal(t, models.SessionStatusInProgress, sess.Status)
	assert.Equal(t, 1, sess.CurrentRound)
	assert.Equal(t, session.StagePromptReading, rig.stageOf(t, "sess-1"))
	// advancing closes any running count task
	assert.Equal(t, []string{"sess-1"}, rig.bcast.stopped)

	rig.send(t, client, RoleFacilitator, "nextPrompt", "",
		`{"sessionId":"sess-1","promptId":"missing"}`)
	rig.requireError(t, client, "INVALID_PAYLOAD")
}

func TestModuleActionStageFlow(t *testing.T) {
	rig := newRig()
	rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusInProgress, session.StagePromptReading)
	client := facilitatorClient("fac-1")

	rig.send(t, client, RoleFacilitator, "moduleAction", "",
		`{"sessionId":"sess-1","action":"openForResponses"}`)
	rig.requireNoError(t, client)
	assert.Equal(t, session.StageInput, rig.stageOf(t, "sess-1"))
	assert.Equal(t, []string{"sess-1"}, rig.bcast.started, "opening input starts the count task")

	rig.send(t, client, RoleFacilitator, "moduleAction", "",
		`{"sessionId":"sess-1","action":"closeInput"}`)
	rig.requireNoError(t, client)
	assert.Equal(t, session.StageModeration, rig.stageOf(t, "sess-1"))
	assert.Equal(t, []string{"sess-1"}, rig.bcast.stopped)

	// out-of-order action is refused without moving the stage
	rig.send(t, client, RoleFacilitator, "moduleAction", "",
		`{"sessionId":"sess-1","action":"continueToDiscussion"}`)
	rig.requireError(t, client, "ILLEGAL_TRANSITION")
	assert.Equal(t, session.StageModeration, rig.stageOf(t, "sess-1"))
}

func TestRedFlagPromptDiscardsCurrentRound(t *testing.T) {
	rig := newRig()
	sess := rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusInProgress, session.StageModeration)
	current := "prompt-2"
	sess.CurrentPromptID = &current
	sess.CurrentRound = 2
	rig.store.responses["old"] = &models.Response{ID: "old", SessionID: sess.ID, PromptID: "prompt-1", Text: "kept"}
	rig.store.responses["cur1"] = &models.Response{ID: "cur1", SessionID: sess.ID, PromptID: "prompt-2", Text: "dropped"}
	rig.store.responses["cur2"] = &models.Response{ID: "cur2", SessionID: sess.ID, PromptID: "prompt-2", Text: models.PassMarker}
	client := facilitatorClient("fac-1")

	rig.send(t, client, RoleFacilitator, "moduleAction", "",
		`{"sessionId":"sess-1","action":"redFlagPrompt"}`)
	rig.requireNoError(t, client)

	// only the flagged prompt's responses are gone, prior rounds survive
	assert.Contains(t, rig.store.responses, "old")
	assert.NotContains(t, rig.store.responses, "cur1")
	assert.NotContains(t, rig.store.responses, "cur2")
	assert.Equal(t, session.StagePromptReading, rig.stageOf(t, "sess-1"))
	assert.Equal(t, 2, rig.store.sessions["sess-1"].CurrentRound, "round numbering is untouched")

	// after reopening input the same prompt accepts fresh submissions
	rig.send(t, client, RoleFacilitator, "moduleAction", "",
		`{"sessionId":"sess-1","action":"openForResponses"}`)
	rig.requireNoError(t, client)

	rig.seedParticipant("p-1", sess.ID, "conn-p-1")
	participant := participantClient("p-1")
	rig.send(t, participant, RoleParticipant, "submitResponse", sess.ID,
		`{"promptId":"prompt-2","reframe":"second try"}`)
	rig.requireNoError(t, participant)
	require.Len(t, rig.store.responses, 2)
}

func TestPauseSessionIsBroadcastOnly(t *testing.T) {
	rig := newRig()
	rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusInProgress, session.StageInput)
	client := facilitatorClient("fac-1")

	rig.send(t, client, RoleFacilitator, "moduleAction", "",
		`{"sessionId":"sess-1","action":"pauseSession"}`)
	rig.requireNoError(t, client)

	assert.Equal(t, []string{"sess-1"}, rig.bcast.paused)
	assert.Equal(t, session.StageInput, rig.stageOf(t, "sess-1"), "pause changes no state")
	assert.Empty(t, rig.bcast.broadcasts)
}

func TestModuleActionUnsupportedByModule(t *testing.T) {
	rig := newRig()
	rig.seedSession(modules.CBTReframeRelayID, models.SessionStatusInProgress, "")
	client := facilitatorClient("fac-1")

	rig.send(t, client, RoleFacilitator, "moduleAction", "",
		`{"sessionId":"sess-1","action":"openForResponses"}`)
	rig.requireError(t, client, "INVALID_PAYLOAD")
}

func TestEndSessionWritesSummaryOnce(t *testing.T) {
	rig := newRig()
	sess := rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusInProgress, session.StageDiscussion)
	rig.seedParticipant("p-1", sess.ID, "conn-p-1")
	rig.seedParticipant("p-2", sess.ID, "conn-p-2")
	rig.store.responses["r1"] = &models.Response{
		ID: "r1", SessionID: sess.ID, ParticipantID: "p-1", PromptID: "prompt-1",
		Text: "keep this", SavedForFollowup: true,
	}
	client := facilitatorClient("fac-1")

	rig.send(t, client, RoleFacilitator, "endSession", "", `{"sessionId":"sess-1"}`)
	rig.requireNoError(t, client)

	assert.Equal(t, models.SessionStatusEnded, rig.store.sessions["sess-1"].Status)
	sum, ok := rig.store.summaries["sess-1"]
	require.True(t, ok)
	assert.Equal(t, "partial (1 of 2 participants engaged)", sum.AttendanceNote)
	var saved []modules.SavedResponse
	require.NoError(t, json.Unmarshal(sum.SavedResponses, &saved))
	require.Len(t, saved, 1)
	assert.Equal(t, "keep this", saved[0].Text)

	// ended is terminal: every further mutation bounces
	rig.send(t, client, RoleFacilitator, "endSession", "", `{"sessionId":"sess-1"}`)
	rig.requireError(t, client, "SESSION_ENDED")
	rig.send(t, client, RoleFacilitator, "nextPrompt", "",
		`{"sessionId":"sess-1","promptId":"prompt-1"}`)
	rig.requireError(t, client, "SESSION_ENDED")
}

func TestJoinsAfterEnd(t *testing.T) {
	rig := newRig()
	rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusEnded, session.StageEnd)

	// viewers may still attach to see the terminal snapshot
	viewer := &Client{Conn: &websocket.Conn{}, ConnID: "conn-v"}
	rig.send(t, viewer, RoleViewer, "join", "", `{"roomCode":"ABCDEF"}`)
	rig.requireNoError(t, viewer)
	assert.Equal(t, []string{"sess-1/viewer"}, rig.bcast.snapshots)
	// public: only, or every public envelope would arrive twice
	assert.Equal(t, []string{"public:sess-1"}, rig.hub.subs[viewer.Conn])

	// so may the facilitator, read only
	facil := facilitatorClient("fac-1")
	rig.send(t, facil, RoleFacilitator, "join", "sess-1", "")
	rig.requireNoError(t, facil)
}

func TestViewerJoinRejections(t *testing.T) {
	rig := newRig()
	viewer := &Client{Conn: &websocket.Conn{}, ConnID: "conn-v"}

	rig.send(t, viewer, RoleViewer, "join", "", `{"roomCode":"nope"}`)
	rig.requireError(t, viewer, "INVALID_PAYLOAD")

	rig.send(t, viewer, RoleViewer, "join", "", `{"roomCode":"ZZZZZZ"}`)
	rig.requireError(t, viewer, "SESSION_NOT_FOUND")
}

func TestUnknownCommandAndRole(t *testing.T) {
	rig := newRig()
	client := participantClient("p-1")

	rig.send(t, client, RoleParticipant, "teleport", "", "")
	rig.requireError(t, client, "UNKNOWN_COMMAND")

	rig.send(t, client, "wizard", "join", "", "")
	rig.requireError(t, client, "UNKNOWN_COMMAND")

	rig.marks[client.Conn] = len(rig.hub.sends[client.Conn])
	rig.d.Dispatch(client, []byte("not json"))
	rig.requireError(t, client, "INVALID_PAYLOAD")
}

func TestDisconnectClearsOnlyTheConnBinding(t *testing.T) {
	rig := newRig()
	sess := rig.seedSession(modules.ThoughtReframeRelayID, models.SessionStatusInProgress, session.StageInput)
	rig.seedParticipant("p-1", sess.ID, "conn-p-1")
	client := participantClient("p-1")

	rig.d.Disconnect(client)

	p := rig.store.participants["p-1"]
	assert.Nil(t, p.ConnID)
	assert.Equal(t, "n-p-1", p.Nickname, "identity survives a disconnect")

	// the stale binding no longer resolves
	rig.send(t, client, RoleParticipant, "submitResponse", sess.ID,
		`{"promptId":"prompt-1","reframe":"x"}`)
	rig.requireError(t, client, "PARTICIPANT_NOT_FOUND")
}
