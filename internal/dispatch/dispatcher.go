// Package dispatch is the single entry point for inbound realtime
// commands. A command carries a declared role tag; the dispatcher
// validates role authority and current-state legality, mutates the
// session store through the state machine, and hands the session to the
// broadcast router. All failures are recovered here and answered as an
// error envelope to the originating connection only; a command either
// completes or fails without partially applied state.
package dispatch

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"session-relay-backend/internal/projection"
	"session-relay-backend/internal/store"
	"session-relay-backend/internal/ws"
)

const (
	RoleFacilitator = "facilitator"
	RoleParticipant = "participant"
	RoleViewer      = "viewer"
)

// Command is the inbound wire envelope.
type Command struct {
	Role      string          `json:"role"`
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Client is the per-connection state established at upgrade time.
type Client struct {
	Conn   *websocket.Conn
	ConnID string
	// UserID is set when the socket authenticated as a facilitator.
	UserID string
}

// Hub is the slice of the websocket hub the dispatcher needs.
type Hub interface {
	Subscribe(channel string, conn *websocket.Conn)
	Unsubscribe(conn *websocket.Conn)
	Send(conn *websocket.Conn, env ws.Envelope)
}

// Broadcaster re-fans state out after mutations.
type Broadcaster interface {
	Broadcast(sessionID string)
	Snapshot(conn *websocket.Conn, sessionID string, role projection.Role) error
	StartCounter(sessionID string)
	StopCounter(sessionID string)
	BroadcastPause(sessionID string)
}

type Options struct {
	SpotlightMax     int
	SessionRetention time.Duration
	SummaryRetention time.Duration
}

type Dispatcher struct {
	store store.SessionStore
	hub   Hub
	bcast Broadcaster
	opts  Options

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(st store.SessionStore, hub Hub, bcast Broadcaster, opts Options) *Dispatcher {
	if opts.SpotlightMax <= 0 {
		opts.SpotlightMax = 6
	}
	if opts.SessionRetention <= 0 {
		opts.SessionRetention = 72 * time.Hour
	}
	if opts.SummaryRetention <= 0 {
		opts.SummaryRetention = 72 * time.Hour
	}
	return &Dispatcher{
		store: st,
		hub:   hub,
		bcast: bcast,
		opts:  opts,
		locks: make(map[string]*sync.Mutex),
	}
}

// Dispatch handles one raw inbound message from a connection.
func (d *Dispatcher) Dispatch(client *Client, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		d.sendError(client, "", ErrInvalidPayload)
		return
	}

	log := logrus.WithFields(logrus.Fields{
		"component":  "dispatch",
		"role":       cmd.Role,
		"type":       cmd.Type,
		"session_id": cmd.SessionID,
	})

	var err error
	switch cmd.Role {
	case RoleFacilitator:
		// facilitator commands are only valid on a socket that
		// authenticated at upgrade time
		if client.UserID == "" {
			err = ErrInvalidPayload
		} else {
			err = d.handleFacilitator(client, &cmd)
		}
	case RoleParticipant:
		err = d.handleParticipant(client, &cmd)
	case RoleViewer:
		err = d.handleViewer(client, &cmd)
	default:
		err = ErrUnknownCommand
	}

	if err != nil {
		log.Warnf("command rejected: %v", err)
		d.sendError(client, cmd.SessionID, err)
		return
	}
	log.Debug("command applied")
}

// Disconnect clears the connection-to-participant binding. The
// connection handle is the only participant field a disconnect mutates.
func (d *Dispatcher) Disconnect(client *Client) {
	if err := d.store.ClearConnection(client.ConnID); err != nil {
		logrus.WithField("component", "dispatch").Warnf("clear connection: %v", err)
	}
	d.hub.Unsubscribe(client.Conn)
}

func (d *Dispatcher) sendError(client *Client, sessionID string, err error) {
	d.hub.Send(client.Conn, ws.Envelope{
		Type:      ws.TypeError,
		SessionID: sessionID,
		Payload: map[string]string{
			"code":    codeFor(err),
			"message": err.Error(),
		},
	})
}

// lockSession serializes commands per session, which both provides the
// per-session ordering guarantee and closes the read-check-write window
// on the spotlight cap within this process.
func (d *Dispatcher) lockSession(sessionID string) func() {
	d.mu.Lock()
	l, ok := d.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[sessionID] = l
	}
	d.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func decode(raw json.RawMessage, v interface{}) error {
	if len(raw) == 0 {
		return ErrInvalidPayload
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return ErrInvalidPayload
	}
	return nil
}
