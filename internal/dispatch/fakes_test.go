package dispatch

import (
	"sort"
	"time"

	"github.com/gorilla/websocket"

	"session-relay-backend/internal/models"
	"session-relay-backend/internal/projection"
	"session-relay-backend/internal/store"
	"session-relay-backend/internal/ws"
)

// memStore is an in-memory SessionStore for dispatcher tests.
type memStore struct {
	sessions     map[string]*models.Session
	participants map[string]*models.Participant
	responses    map[string]*models.Response
	summaries    map[string]*models.Summary
	prompts      map[string]*models.Prompt
}

func newMemStore() *memStore {
	return &memStore{
		sessions:     make(map[string]*models.Session),
		participants: make(map[string]*models.Participant),
		responses:    make(map[string]*models.Response),
		summaries:    make(map[string]*models.Summary),
		prompts:      make(map[string]*models.Prompt),
	}
}

func (m *memStore) WithTx(fn func(store.SessionStore) error) error { return fn(m) }

func (m *memStore) CreateSession(s *models.Session) error {
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) SessionByID(id string) (*models.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) SessionByRoomCode(code string) (*models.Session, error) {
	for _, s := range m.sessions {
		if s.RoomCode == code {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) SaveSession(s *models.Session) error {
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memStore) RoomCodeTaken(code string) (bool, error) {
	for _, s := range m.sessions {
		if s.RoomCode == code && s.Status != models.SessionStatusEnded {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) SessionsByFacilitator(facilitatorID string) ([]models.Session, error) {
	var out []models.Session
	for _, s := range m.sessions {
		if s.FacilitatorID == facilitatorID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) DeleteExpiredSessions(now time.Time) (int64, error) {
	var n int64
	for id, s := range m.sessions {
		if !s.PurgeAfter.After(now) && s.Status != models.SessionStatusEnded {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateParticipant(p *models.Participant) error {
	cp := *p
	m.participants[p.ID] = &cp
	return nil
}

func (m *memStore) SaveParticipant(p *models.Participant) error {
	cp := *p
	m.participants[p.ID] = &cp
	return nil
}

func (m *memStore) ParticipantByConn(sessionID, connID string) (*models.Participant, error) {
	for _, p := range m.participants {
		if p.SessionID == sessionID && p.ConnID != nil && *p.ConnID == connID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ClearConnection(connID string) error {
	for _, p := range m.participants {
		if p.ConnID != nil && *p.ConnID == connID {
			p.ConnID = nil
		}
	}
	return nil
}

func (m *memStore) ListParticipants(sessionID string) ([]models.Participant, error) {
	var out []models.Participant
	for _, p := range m.participants {
		if p.SessionID == sessionID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (m *memStore) CreateResponse(r *models.Response) error {
	cp := *r
	m.responses[r.ID] = &cp
	return nil
}

func (m *memStore) ResponseByID(id string) (*models.Response, error) {
	r, ok := m.responses[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) SaveResponse(r *models.Response) error {
	cp := *r
	m.responses[r.ID] = &cp
	return nil
}

func (m *memStore) ListResponses(sessionID string) ([]models.Response, error) {
	var out []models.Response
	for _, r := range m.responses {
		if r.SessionID == sessionID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].SubmittedAt.Before(out[j].SubmittedAt)
	})
	return out, nil
}

func (m *memStore) ListResponsesByFlags(sessionID string, spotlighted, hidden, saved *bool) ([]models.Response, error) {
	all, _ := m.ListResponses(sessionID)
	var out []models.Response
	for _, r := range all {
		if spotlighted != nil && r.Spotlighted != *spotlighted {
			continue
		}
		if hidden != nil && r.Hidden != *hidden {
			continue
		}
		if saved != nil && r.SavedForFollowup != *saved {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *memStore) CountSpotlighted(sessionID string) (int, error) {
	n := 0
	for _, r := range m.responses {
		if r.SessionID == sessionID && r.Spotlighted {
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteResponsesForPrompt(sessionID, promptID string) (int64, error) {
	var n int64
	for id, r := range m.responses {
		if r.SessionID == sessionID && r.PromptID == promptID {
			delete(m.responses, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateSummary(sum *models.Summary) error {
	cp := *sum
	m.summaries[sum.SessionID] = &cp
	return nil
}

func (m *memStore) SummaryBySession(sessionID string) (*models.Summary, error) {
	sum, ok := m.summaries[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sum
	return &cp, nil
}

func (m *memStore) DeleteExpiredSummaries(now time.Time) (int64, error) {
	var n int64
	for id, sum := range m.summaries {
		if !sum.PurgeAfter.After(now) {
			delete(m.summaries, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) PromptByID(id string) (*models.Prompt, error) {
	p, ok := m.prompts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// fakeHub records subscriptions and sends without touching real sockets.
type fakeHub struct {
	subs  map[*websocket.Conn][]string
	sends map[*websocket.Conn][]ws.Envelope
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		subs:  make(map[*websocket.Conn][]string),
		sends: make(map[*websocket.Conn][]ws.Envelope),
	}
}

func (h *fakeHub) Subscribe(channel string, conn *websocket.Conn) {
	h.subs[conn] = append(h.subs[conn], channel)
}

func (h *fakeHub) Unsubscribe(conn *websocket.Conn) {
	delete(h.subs, conn)
}

func (h *fakeHub) Send(conn *websocket.Conn, env ws.Envelope) {
	h.sends[conn] = append(h.sends[conn], env)
}

// errorSince returns the first error envelope sent to conn at or after
// index from, so assertions track one command at a time.
func (h *fakeHub) errorSince(conn *websocket.Conn, from int) (string, bool) {
	for _, env := range h.sends[conn][from:] {
		if env.Type == ws.TypeError {
			payload := env.Payload.(map[string]string)
			return payload["code"], true
		}
	}
	return "", false
}

// fakeBroadcaster counts fan-out calls instead of pushing envelopes.
type fakeBroadcaster struct {
	broadcasts []string
	snapshots  []string
	started    []string
	stopped    []string
	paused     []string
}

func (b *fakeBroadcaster) Broadcast(sessionID string) {
	b.broadcasts = append(b.broadcasts, sessionID)
}

func (b *fakeBroadcaster) Snapshot(conn *websocket.Conn, sessionID string, role projection.Role) error {
	b.snapshots = append(b.snapshots, sessionID+"/"+string(role))
	return nil
}

func (b *fakeBroadcaster) StartCounter(sessionID string) {
	b.started = append(b.started, sessionID)
}

func (b *fakeBroadcaster) StopCounter(sessionID string) {
	b.stopped = append(b.stopped, sessionID)
}

func (b *fakeBroadcaster) BroadcastPause(sessionID string) {
	b.paused = append(b.paused, sessionID)
}
