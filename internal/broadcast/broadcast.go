// Package broadcast recomputes per-audience projections and fans them
// out after every mutation. Every push is a full, self-consistent
// snapshot of that audience's view; there is no delta protocol, so a
// missed broadcast is corrected by the next one or by a reconnect.
package broadcast

import (
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"session-relay-backend/internal/models"
	"session-relay-backend/internal/modules"
	"session-relay-backend/internal/projection"
	"session-relay-backend/internal/session"
	"session-relay-backend/internal/store"
	"session-relay-backend/internal/ws"
)

type Router struct {
	store   store.SessionStore
	hub     *ws.Hub
	counter *counter
}

func NewRouter(st store.SessionStore, hub *ws.Hub) *Router {
	r := &Router{store: st, hub: hub}
	r.counter = newCounter(r)
	return r
}

func (r *Router) log(sessionID string) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"component":  "broadcast",
		"session_id": sessionID,
	})
}

// Broadcast re-fetches the session's state and pushes fresh snapshots to
// all three audiences.
func (r *Router) Broadcast(sessionID string) {
	sess, err := r.store.SessionByID(sessionID)
	if err != nil {
		r.log(sessionID).Warnf("session fetch failed: %v", err)
		return
	}
	responses, err := r.store.ListResponses(sessionID)
	if err != nil {
		r.log(sessionID).Warnf("responses fetch failed: %v", err)
		return
	}
	participants, err := r.store.ListParticipants(sessionID)
	if err != nil {
		r.log(sessionID).Warnf("participants fetch failed: %v", err)
		return
	}

	state := projection.SessionStateOf(sess, r.stageOf(sess))
	list := projection.ParticipantList(participants)

	for _, ch := range []string{ws.ChannelSession, ws.ChannelPublic} {
		r.hub.Broadcast(ws.Channel(ch, sessionID), ws.Envelope{
			Type: ws.TypeSessionState, SessionID: sessionID, Payload: state,
		})
		r.hub.Broadcast(ws.Channel(ch, sessionID), ws.Envelope{
			Type: ws.TypeParticipantList, SessionID: sessionID, Payload: list,
		})
	}

	if sess.CurrentPromptID != nil {
		if prompt, err := r.store.PromptByID(*sess.CurrentPromptID); err == nil {
			payload := projection.PromptOf(prompt, sess.CurrentRound)
			for _, ch := range []string{ws.ChannelSession, ws.ChannelPublic} {
				r.hub.Broadcast(ws.Channel(ch, sessionID), ws.Envelope{
					Type: ws.TypeCurrentPrompt, SessionID: sessionID, Payload: payload,
				})
			}
		}
	}

	r.broadcastResponses(sess, responses, participants)
}

func (r *Router) broadcastResponses(sess *models.Session, responses []models.Response, participants []models.Participant) {
	facil := projection.ResponsesUpdate{
		Responses: projection.FacilitatorResponses(responses, participants),
	}
	public := projection.ResponsesUpdate{
		Spotlighted: projection.SpotlightedResponses(responses),
	}
	if sess.CurrentPromptID != nil {
		n := projection.ReceivedCount(responses, *sess.CurrentPromptID)
		facil.ReceivedCount = n
		public.ReceivedCount = n
	}

	r.hub.Broadcast(ws.Channel(ws.ChannelFacilitator, sess.ID), ws.Envelope{
		Type: ws.TypeResponsesUpdate, SessionID: sess.ID, Payload: facil,
	})
	for _, ch := range []string{ws.ChannelSession, ws.ChannelPublic} {
		r.hub.Broadcast(ws.Channel(ch, sess.ID), ws.Envelope{
			Type: ws.TypeResponsesUpdate, SessionID: sess.ID, Payload: public,
		})
	}
}

// BroadcastPause pushes a paused session-state frame to the shared
// screens. Nothing is persisted: a pause is purely presentational and
// the next regular broadcast clears it.
func (r *Router) BroadcastPause(sessionID string) {
	sess, err := r.store.SessionByID(sessionID)
	if err != nil {
		r.log(sessionID).Warnf("session fetch failed: %v", err)
		return
	}
	state := projection.SessionStateOf(sess, r.stageOf(sess))
	state.Paused = true
	r.hub.Broadcast(ws.Channel(ws.ChannelPublic, sessionID), ws.Envelope{
		Type: ws.TypeSessionState, SessionID: sessionID, Payload: state,
	})
}

// Snapshot sends the full current view for one role to a single
// connection. Used on join and reconnect so clients never need deltas.
func (r *Router) Snapshot(conn *websocket.Conn, sessionID string, role projection.Role) error {
	sess, err := r.store.SessionByID(sessionID)
	if err != nil {
		return err
	}
	responses, err := r.store.ListResponses(sessionID)
	if err != nil {
		return err
	}
	participants, err := r.store.ListParticipants(sessionID)
	if err != nil {
		return err
	}

	proj := projection.Build(sess, r.stageOf(sess), responses, participants, role)
	r.hub.Send(conn, ws.Envelope{Type: ws.TypeSessionState, SessionID: sessionID, Payload: proj.SessionState})
	r.hub.Send(conn, ws.Envelope{Type: ws.TypeParticipantList, SessionID: sessionID, Payload: proj.Participants})
	if sess.CurrentPromptID != nil {
		if prompt, err := r.store.PromptByID(*sess.CurrentPromptID); err == nil {
			r.hub.Send(conn, ws.Envelope{
				Type: ws.TypeCurrentPrompt, SessionID: sessionID,
				Payload: projection.PromptOf(prompt, sess.CurrentRound),
			})
		}
	}
	r.hub.Send(conn, ws.Envelope{Type: ws.TypeResponsesUpdate, SessionID: sessionID, Payload: proj.Responses})
	return nil
}

// stageOf resolves the module sub-state without the core ever branching
// on a module id.
func (r *Router) stageOf(sess *models.Session) session.Stage {
	mod, err := modules.Get(sess.ModuleID)
	if err != nil {
		return ""
	}
	if staged, ok := mod.(modules.Staged); ok {
		return staged.Stage(sess)
	}
	return ""
}
