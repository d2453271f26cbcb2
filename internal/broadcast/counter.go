package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"session-relay-backend/internal/projection"
	"session-relay-backend/internal/ws"
)

// counter owns one scheduled task per session that re-broadcasts the
// anonymous received-count while input is open. Each task is bound to a
// context and cancelled when the session leaves INPUT or ends, so no
// repeating task can outlive the state that required it.
type counter struct {
	router   *Router
	interval time.Duration

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newCounter(r *Router) *counter {
	return &counter{
		router:   r,
		interval: 2 * time.Second,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// SetCountInterval overrides the default tick period.
func (r *Router) SetCountInterval(d time.Duration) {
	if d > 0 {
		r.counter.interval = d
	}
}

// StartCounter begins periodic count broadcasts for the session,
// replacing any previous task for the same session.
func (r *Router) StartCounter(sessionID string) {
	c := r.counter
	c.mu.Lock()
	if cancel, ok := c.cancels[sessionID]; ok {
		cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancels[sessionID] = cancel
	c.mu.Unlock()

	go c.run(ctx, sessionID)
}

// StopCounter cancels the session's count task, if any.
func (r *Router) StopCounter(sessionID string) {
	c := r.counter
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.cancels[sessionID]; ok {
		cancel()
		delete(c.cancels, sessionID)
	}
}

func (c *counter) run(ctx context.Context, sessionID string) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	log := logrus.WithFields(logrus.Fields{
		"component":  "broadcast",
		"session_id": sessionID,
	})
	log.Debug("count broadcast started")

	for {
		select {
		case <-ctx.Done():
			log.Debug("count broadcast stopped")
			return
		case <-ticker.C:
			c.tick(sessionID)
		}
	}
}

func (c *counter) tick(sessionID string) {
	sess, err := c.router.store.SessionByID(sessionID)
	if err != nil || sess.CurrentPromptID == nil {
		return
	}
	responses, err := c.router.store.ListResponses(sessionID)
	if err != nil {
		return
	}
	payload := projection.ResponsesUpdate{
		Spotlighted:   projection.SpotlightedResponses(responses),
		ReceivedCount: projection.ReceivedCount(responses, *sess.CurrentPromptID),
	}
	for _, ch := range []string{ws.ChannelSession, ws.ChannelPublic} {
		c.router.hub.Broadcast(ws.Channel(ch, sessionID), ws.Envelope{
			Type: ws.TypeResponsesUpdate, SessionID: sessionID, Payload: payload,
		})
	}
}
