package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Outbound envelope types.
const (
	TypeSessionState    = "sessionState"
	TypeCurrentPrompt   = "currentPrompt"
	TypeResponsesUpdate = "responsesUpdate"
	TypeParticipantList = "participantListUpdate"
	TypeJoined          = "joined"
	TypeError           = "error"
)

// Audience channel kinds. A channel name is "<kind>:<sessionID>".
const (
	ChannelSession     = "session"
	ChannelFacilitator = "facilitator"
	ChannelPublic      = "public"
)

func Channel(kind, sessionID string) string {
	return kind + ":" + sessionID
}

type Envelope struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Hub tracks which connections are subscribed to which audience channel
// and pushes envelopes to them. Delivery is fire-and-forget: a failed
// write drops the connection and the next broadcast or a client
// reconnect corrects any missed state.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*websocket.Conn]bool
	// gorilla allows one concurrent writer per conn
	writers map[*websocket.Conn]*sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*websocket.Conn]bool),
		writers:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

func (h *Hub) Subscribe(channel string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*websocket.Conn]bool)
	}
	h.channels[channel][conn] = true
	if h.writers[conn] == nil {
		h.writers[conn] = &sync.Mutex{}
	}
	logrus.WithFields(logrus.Fields{
		"component": "hub",
		"channel":   channel,
		"subs":      len(h.channels[channel]),
	}).Debug("connection subscribed")
}

// Unsubscribe removes the connection from every channel it joined and
// closes it.
func (h *Hub) Unsubscribe(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for channel, conns := range h.channels {
		if conns[conn] {
			delete(conns, conn)
			if len(conns) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	delete(h.writers, conn)
	conn.Close()
}

// Broadcast pushes one envelope to every connection on the channel.
func (h *Hub) Broadcast(channel string, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logrus.WithField("component", "hub").Errorf("marshal envelope: %v", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.channels[channel]))
	for conn := range h.channels[channel] {
		conns = append(conns, conn)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		if err := h.write(conn, data); err != nil {
			logrus.WithFields(logrus.Fields{
				"component": "hub",
				"channel":   channel,
			}).Warnf("write failed, dropping connection: %v", err)
			h.Unsubscribe(conn)
		}
	}
}

// Send delivers an envelope to a single connection, used for join
// confirmations and error replies to the originating client.
func (h *Hub) Send(conn *websocket.Conn, env Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		logrus.WithField("component", "hub").Errorf("marshal envelope: %v", err)
		return
	}
	if err := h.write(conn, data); err != nil {
		h.Unsubscribe(conn)
	}
}

func (h *Hub) write(conn *websocket.Conn, data []byte) error {
	h.mu.Lock()
	mu := h.writers[conn]
	if mu == nil {
		// first write can land before any Subscribe (join errors);
		// the writer lock is allocated on demand so every write to a
		// conn is serialized
		mu = &sync.Mutex{}
		h.writers[conn] = mu
	}
	h.mu.Unlock()
	mu.Lock()
	defer mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}
