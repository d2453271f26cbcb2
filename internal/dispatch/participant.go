package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"session-relay-backend/internal/models"
	"session-relay-backend/internal/modules"
	"session-relay-backend/internal/projection"
	"session-relay-backend/internal/roomcode"
	"session-relay-backend/internal/session"
	"session-relay-backend/internal/store"
	"session-relay-backend/internal/ws"
)

type participantJoinPayload struct {
	RoomCode    string `json:"roomCode"`
	Nickname    string `json:"nickname"`
	PseudonymID string `json:"pseudonymId"`
}

type submitResponsePayload struct {
	PromptID string `json:"promptId"`
}

func (d *Dispatcher) handleParticipant(client *Client, cmd *Command) error {
	switch cmd.Type {
	case "join":
		return d.participantJoin(client, cmd.Payload)
	case "submitResponse":
		return d.submitResponse(client, cmd.SessionID, cmd.Payload)
	case "skip":
		return d.skip(client, cmd.SessionID)
	default:
		return ErrUnknownCommand
	}
}

func (d *Dispatcher) participantJoin(client *Client, raw json.RawMessage) error {
	var p participantJoinPayload
	if err := decode(raw, &p); err != nil {
		return err
	}
	if !roomcode.Valid(p.RoomCode) || p.Nickname == "" {
		return ErrInvalidPayload
	}

	sess, err := d.store.SessionByRoomCode(p.RoomCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}
	if sess.Status == models.SessionStatusEnded {
		return ErrSessionEnded
	}

	unlock := d.lockSession(sess.ID)
	defer unlock()

	connID := client.ConnID
	participant := &models.Participant{
		ID:          uuid.New().String(),
		SessionID:   sess.ID,
		Nickname:    p.Nickname,
		PseudonymID: p.PseudonymID,
		ConnID:      &connID,
		JoinedAt:    time.Now(),
	}
	if err := d.store.CreateParticipant(participant); err != nil {
		return fmt.Errorf("create participant: %w", err)
	}

	// the first join promotes a freshly created session into the lobby
	if session.EnterLobby(sess) {
		if err := d.store.SaveSession(sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}

	d.hub.Subscribe(ws.Channel(ws.ChannelSession, sess.ID), client.Conn)
	d.hub.Send(client.Conn, ws.Envelope{
		Type:      ws.TypeJoined,
		SessionID: sess.ID,
		Payload:   map[string]string{"sessionId": sess.ID, "participantId": participant.ID},
	})
	if err := d.bcast.Snapshot(client.Conn, sess.ID, projection.RoleParticipant); err != nil {
		return err
	}
	d.bcast.Broadcast(sess.ID)
	return nil
}

func (d *Dispatcher) submitResponse(client *Client, sessionID string, raw json.RawMessage) error {
	unlock := d.lockSession(sessionID)
	defer unlock()

	sess, mod, err := d.loadSessionModule(sessionID)
	if err != nil {
		return err
	}
	participant, err := d.participantByConn(sess.ID, client.ConnID)
	if err != nil {
		return err
	}

	// staged modules accept input only while the sub-state is INPUT;
	// stageless modules whenever the session is in progress
	if staged, ok := mod.(modules.Staged); ok {
		if staged.Stage(sess) != session.StageInput {
			return ErrInputNotOpen
		}
	} else if sess.Status != models.SessionStatusInProgress {
		return ErrInputNotOpen
	}

	var ref submitResponsePayload
	if err := decode(raw, &ref); err != nil {
		return err
	}
	if ref.PromptID == "" {
		return ErrInvalidPayload
	}
	input, err := mod.ParseInput(raw)
	if err != nil {
		return err
	}

	response := &models.Response{
		ID:               uuid.New().String(),
		SessionID:        sess.ID,
		ParticipantID:    participant.ID,
		PromptID:         ref.PromptID,
		RoundNumber:      sess.CurrentRound,
		Text:             input.Text,
		AutomaticThought: input.AutomaticThought,
		EmotionPre:       input.EmotionPre,
		EmotionPost:      input.EmotionPost,
		SubmittedAt:      time.Now(),
	}

	// response write and participant touch stay one unit
	now := time.Now()
	participant.LastSeenAt = &now
	err = d.store.WithTx(func(tx store.SessionStore) error {
		if err := tx.CreateResponse(response); err != nil {
			return err
		}
		return tx.SaveParticipant(participant)
	})
	if err != nil {
		return fmt.Errorf("submit response: %w", err)
	}

	d.bcast.Broadcast(sess.ID)
	return nil
}

// skip is always legal regardless of sub-state and never writes a
// response row; only the participant's last-seen moves. Deliberate
// no-pressure design, not an oversight.
func (d *Dispatcher) skip(client *Client, sessionID string) error {
	sess, err := d.loadSession(sessionID)
	if err != nil {
		return err
	}
	participant, err := d.participantByConn(sess.ID, client.ConnID)
	if err != nil {
		return err
	}
	now := time.Now()
	participant.LastSeenAt = &now
	if err := d.store.SaveParticipant(participant); err != nil {
		return fmt.Errorf("save participant: %w", err)
	}
	d.bcast.Broadcast(sess.ID)
	return nil
}

func (d *Dispatcher) participantByConn(sessionID, connID string) (*models.Participant, error) {
	participant, err := d.store.ParticipantByConn(sessionID, connID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, err
	}
	return participant, nil
}
