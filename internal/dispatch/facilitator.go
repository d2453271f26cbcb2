package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"session-relay-backend/internal/models"
	"session-relay-backend/internal/modules"
	"session-relay-backend/internal/projection"
	"session-relay-backend/internal/roomcode"
	"session-relay-backend/internal/session"
	"session-relay-backend/internal/store"
	"session-relay-backend/internal/ws"
)

type createSessionPayload struct {
	CareTeamID   string `json:"careTeamId"`
	ModuleID     string `json:"moduleId"`
	PromptPackID string `json:"promptPackId"`
	NumRounds    int    `json:"numRounds"`
	IntroMediaID string `json:"introMediaId"`
}

type sessionRefPayload struct {
	SessionID string `json:"sessionId"`
}

type nextPromptPayload struct {
	SessionID string `json:"sessionId"`
	PromptID  string `json:"promptId"`
}

type responseRefPayload struct {
	SessionID  string `json:"sessionId"`
	ResponseID string `json:"responseId"`
}

type moduleActionPayload struct {
	SessionID string `json:"sessionId"`
	Action    string `json:"action"`
}

func (d *Dispatcher) handleFacilitator(client *Client, cmd *Command) error {
	switch cmd.Type {
	case "join":
		return d.facilitatorJoin(client, cmd.SessionID)
	case "createSession":
		return d.createSession(client, cmd.Payload)
	case "startSession":
		return d.startSession(cmd.Payload)
	case "nextPrompt":
		return d.nextPrompt(cmd.Payload)
	case "spotlightResponse":
		return d.spotlightResponse(cmd.Payload)
	case "hideResponse":
		return d.hideResponse(cmd.Payload)
	case "saveForFollowup":
		return d.saveForFollowup(cmd.Payload)
	case "endSession":
		return d.endSession(cmd.Payload)
	case "markIntroCompleted":
		return d.markIntroCompleted(cmd.SessionID)
	case "moduleAction":
		return d.moduleAction(cmd.Payload)
	default:
		return ErrUnknownCommand
	}
}

// facilitatorJoin resubscribes a facilitator connection and replays the
// full current snapshot. Legal for ended sessions too: joining is read
// only.
func (d *Dispatcher) facilitatorJoin(client *Client, sessionID string) error {
	sess, err := d.loadAnySession(sessionID)
	if err != nil {
		return err
	}
	d.hub.Subscribe(ws.Channel(ws.ChannelSession, sess.ID), client.Conn)
	d.hub.Subscribe(ws.Channel(ws.ChannelFacilitator, sess.ID), client.Conn)
	return d.bcast.Snapshot(client.Conn, sess.ID, projection.RoleFacilitator)
}

func (d *Dispatcher) createSession(client *Client, raw json.RawMessage) error {
	var p createSessionPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if _, err := modules.Get(p.ModuleID); err != nil {
		return err
	}
	if p.NumRounds < 1 {
		return ErrInvalidPayload
	}

	code, err := d.uniqueRoomCode()
	if err != nil {
		return err
	}

	sess := &models.Session{
		ID:            uuid.New().String(),
		RoomCode:      code,
		FacilitatorID: client.UserID,
		CareTeamID:    p.CareTeamID,
		ModuleID:      p.ModuleID,
		PromptPackID:  p.PromptPackID,
		Status:        models.SessionStatusCreated,
		NumRounds:     p.NumRounds,
		PurgeAfter:    time.Now().Add(d.opts.SessionRetention),
		CreatedAt:     time.Now(),
	}
	if p.IntroMediaID != "" {
		sess.IntroMediaID = &p.IntroMediaID
	}
	if err := d.store.CreateSession(sess); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	d.hub.Subscribe(ws.Channel(ws.ChannelSession, sess.ID), client.Conn)
	d.hub.Subscribe(ws.Channel(ws.ChannelFacilitator, sess.ID), client.Conn)
	d.hub.Send(client.Conn, ws.Envelope{
		Type:      ws.TypeJoined,
		SessionID: sess.ID,
		Payload:   map[string]string{"sessionId": sess.ID, "roomCode": sess.RoomCode},
	})
	d.bcast.Broadcast(sess.ID)
	return nil
}

func (d *Dispatcher) uniqueRoomCode() (string, error) {
	for {
		code := roomcode.Generate()
		taken, err := d.store.RoomCodeTaken(code)
		if err != nil {
			return "", fmt.Errorf("room code check: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
}

func (d *Dispatcher) startSession(raw json.RawMessage) error {
	var p sessionRefPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	unlock := d.lockSession(p.SessionID)
	defer unlock()

	sess, mod, err := d.loadSessionModule(p.SessionID)
	if err != nil {
		return err
	}

	requiresIntro := sess.IntroMediaID != nil
	if err := session.Start(sess, requiresIntro); err != nil {
		return err
	}
	if staged, ok := mod.(modules.Staged); ok {
		stage := session.StageLobby
		if requiresIntro {
			stage = session.StageIntro
		}
		if err := staged.SetStage(sess, stage); err != nil {
			return err
		}
	}
	if err := d.store.SaveSession(sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	d.bcast.Broadcast(sess.ID)
	return nil
}

func (d *Dispatcher) markIntroCompleted(sessionID string) error {
	unlock := d.lockSession(sessionID)
	defer unlock()

	sess, mod, err := d.loadSessionModule(sessionID)
	if err != nil {
		return err
	}
	if err := session.MarkIntroCompleted(sess); err != nil {
		return err
	}
	if staged, ok := mod.(modules.Staged); ok {
		if err := staged.SetStage(sess, session.StagePromptReading); err != nil {
			return err
		}
	}
	if err := d.store.SaveSession(sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	d.bcast.Broadcast(sess.ID)
	return nil
}

func (d *Dispatcher) nextPrompt(raw json.RawMessage) error {
	var p nextPromptPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	unlock := d.lockSession(p.SessionID)
	defer unlock()

	sess, mod, err := d.loadSessionModule(p.SessionID)
	if err != nil {
		return err
	}

	prompt, err := d.store.PromptByID(p.PromptID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidPayload
		}
		return err
	}
	if err := mod.ValidatePrompt(prompt); err != nil {
		return err
	}

	if err := session.AdvancePrompt(sess, prompt.ID); err != nil {
		return err
	}
	if staged, ok := mod.(modules.Staged); ok {
		if err := staged.SetStage(sess, session.StagePromptReading); err != nil {
			return err
		}
	}
	if err := d.store.SaveSession(sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	d.bcast.StopCounter(sess.ID)
	d.bcast.Broadcast(sess.ID)
	return nil
}

func (d *Dispatcher) spotlightResponse(raw json.RawMessage) error {
	var p responseRefPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	unlock := d.lockSession(p.SessionID)
	defer unlock()

	if _, err := d.loadSession(p.SessionID); err != nil {
		return err
	}
	resp, err := d.loadResponse(p.SessionID, p.ResponseID)
	if err != nil {
		return err
	}
	// hidden implies not-spotlighted, and passes are never displayed
	if resp.Hidden || resp.IsPass() {
		return ErrInvalidPayload
	}
	if !resp.Spotlighted {
		count, err := d.store.CountSpotlighted(p.SessionID)
		if err != nil {
			return fmt.Errorf("count spotlighted: %w", err)
		}
		if count >= d.opts.SpotlightMax {
			return ErrSpotlightLimit
		}
	}
	resp.Spotlighted = true
	if err := d.store.SaveResponse(resp); err != nil {
		return fmt.Errorf("save response: %w", err)
	}
	d.bcast.Broadcast(p.SessionID)
	return nil
}

func (d *Dispatcher) hideResponse(raw json.RawMessage) error {
	var p responseRefPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	unlock := d.lockSession(p.SessionID)
	defer unlock()

	if _, err := d.loadSession(p.SessionID); err != nil {
		return err
	}
	resp, err := d.loadResponse(p.SessionID, p.ResponseID)
	if err != nil {
		return err
	}
	resp.Hidden = true
	resp.Spotlighted = false
	if err := d.store.SaveResponse(resp); err != nil {
		return fmt.Errorf("save response: %w", err)
	}
	d.bcast.Broadcast(p.SessionID)
	return nil
}

func (d *Dispatcher) saveForFollowup(raw json.RawMessage) error {
	var p responseRefPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	unlock := d.lockSession(p.SessionID)
	defer unlock()

	if _, err := d.loadSession(p.SessionID); err != nil {
		return err
	}
	resp, err := d.loadResponse(p.SessionID, p.ResponseID)
	if err != nil {
		return err
	}
	resp.SavedForFollowup = true
	if err := d.store.SaveResponse(resp); err != nil {
		return fmt.Errorf("save response: %w", err)
	}
	d.bcast.Broadcast(p.SessionID)
	return nil
}

// endSession is terminal: it generates the summary exactly once, stamps
// the end time and stops accepting mutations for the session.
func (d *Dispatcher) endSession(raw json.RawMessage) error {
	var p sessionRefPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	unlock := d.lockSession(p.SessionID)
	defer unlock()

	sess, mod, err := d.loadSessionModule(p.SessionID)
	if err != nil {
		return err
	}
	if err := session.End(sess); err != nil {
		return err
	}

	responses, err := d.store.ListResponses(sess.ID)
	if err != nil {
		return fmt.Errorf("list responses: %w", err)
	}
	participants, err := d.store.ListParticipants(sess.ID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}
	summaryData, err := mod.GenerateSummary(sess, responses, participants)
	if err != nil {
		return fmt.Errorf("generate summary: %w", err)
	}
	payload, err := json.Marshal(summaryData.SavedResponses)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	if staged, ok := mod.(modules.Staged); ok {
		if err := staged.SetStage(sess, session.StageEnd); err != nil {
			return err
		}
	}

	err = d.store.WithTx(func(tx store.SessionStore) error {
		if err := tx.CreateSummary(&models.Summary{
			ID:             uuid.New().String(),
			SessionID:      sess.ID,
			ModuleID:       summaryData.ModuleID,
			NumRounds:      summaryData.NumRounds,
			AttendanceNote: summaryData.AttendanceNote,
			SavedResponses: datatypes.JSON(payload),
			PurgeAfter:     time.Now().Add(d.opts.SummaryRetention),
			CreatedAt:      time.Now(),
		}); err != nil {
			return err
		}
		return tx.SaveSession(sess)
	})
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}

	d.bcast.StopCounter(sess.ID)
	d.bcast.Broadcast(sess.ID)
	return nil
}

func (d *Dispatcher) moduleAction(raw json.RawMessage) error {
	var p moduleActionPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	unlock := d.lockSession(p.SessionID)
	defer unlock()

	sess, mod, err := d.loadSessionModule(p.SessionID)
	if err != nil {
		return err
	}
	if !supportsAction(mod, p.Action) {
		return ErrInvalidPayload
	}

	// pauseSession is broadcast-only: a holding signal with no state
	// change.
	if p.Action == session.ActionPauseSession {
		d.bcast.BroadcastPause(sess.ID)
		return nil
	}

	staged, ok := mod.(modules.Staged)
	if !ok {
		return ErrInvalidPayload
	}

	next, err := session.NextStage(staged.Stage(sess), p.Action)
	if err != nil {
		return err
	}

	// redFlagPrompt discards the current prompt's responses so the
	// round can be redone without corrupting round numbering.
	if p.Action == session.ActionRedFlagPrompt && sess.CurrentPromptID != nil {
		if _, err := d.store.DeleteResponsesForPrompt(sess.ID, *sess.CurrentPromptID); err != nil {
			return fmt.Errorf("discard responses: %w", err)
		}
	}

	if err := staged.SetStage(sess, next); err != nil {
		return err
	}
	if err := d.store.SaveSession(sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	if next == session.StageInput {
		d.bcast.StartCounter(sess.ID)
	} else {
		d.bcast.StopCounter(sess.ID)
	}
	d.bcast.Broadcast(sess.ID)
	return nil
}

func supportsAction(mod modules.Module, action string) bool {
	for _, a := range mod.FacilitatorActions() {
		if a == action {
			return true
		}
	}
	return false
}

// loadAnySession resolves a session regardless of status, for the
// idempotent-safe join commands.
func (d *Dispatcher) loadAnySession(sessionID string) (*models.Session, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}
	sess, err := d.store.SessionByID(sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return sess, nil
}

// loadSession resolves a session for a mutating command. An ended
// session is terminal and rejects all further mutations.
func (d *Dispatcher) loadSession(sessionID string) (*models.Session, error) {
	sess, err := d.loadAnySession(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == models.SessionStatusEnded {
		return nil, ErrSessionEnded
	}
	return sess, nil
}

func (d *Dispatcher) loadSessionModule(sessionID string) (*models.Session, modules.Module, error) {
	sess, err := d.loadSession(sessionID)
	if err != nil {
		return nil, nil, err
	}
	mod, err := modules.Get(sess.ModuleID)
	if err != nil {
		return nil, nil, err
	}
	return sess, mod, nil
}

func (d *Dispatcher) loadResponse(sessionID, responseID string) (*models.Response, error) {
	resp, err := d.store.ResponseByID(responseID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidPayload
		}
		return nil, err
	}
	if resp.SessionID != sessionID {
		return nil, ErrInvalidPayload
	}
	return resp, nil
}
