// Package store is the durable boundary of the core. The dispatcher,
// broadcaster and sweeper only ever see the SessionStore interface; the
// gorm adapter below is the one production implementation and tests
// substitute fakes.
package store

import (
	"errors"
	"time"

	"session-relay-backend/internal/models"
)

var ErrNotFound = errors.New("record not found")

type SessionStore interface {
	// WithTx runs fn against a transactional view of the store. Used to
	// keep a response write and its participant touch in one unit.
	WithTx(fn func(SessionStore) error) error

	CreateSession(s *models.Session) error
	SessionByID(id string) (*models.Session, error)
	SessionByRoomCode(code string) (*models.Session, error)
	SaveSession(s *models.Session) error
	RoomCodeTaken(code string) (bool, error)
	SessionsByFacilitator(facilitatorID string) ([]models.Session, error)
	// DeleteExpiredSessions removes sessions past their retention
	// deadline that never ended, cascading to participants and
	// responses.
	DeleteExpiredSessions(now time.Time) (int64, error)

	CreateParticipant(p *models.Participant) error
	SaveParticipant(p *models.Participant) error
	ParticipantByConn(sessionID, connID string) (*models.Participant, error)
	ClearConnection(connID string) error
	ListParticipants(sessionID string) ([]models.Participant, error)

	CreateResponse(r *models.Response) error
	ResponseByID(id string) (*models.Response, error)
	SaveResponse(r *models.Response) error
	ListResponses(sessionID string) ([]models.Response, error)
	ListResponsesByFlags(sessionID string, spotlighted, hidden, saved *bool) ([]models.Response, error)
	CountSpotlighted(sessionID string) (int, error)
	DeleteResponsesForPrompt(sessionID, promptID string) (int64, error)

	CreateSummary(sum *models.Summary) error
	SummaryBySession(sessionID string) (*models.Summary, error)
	DeleteExpiredSummaries(now time.Time) (int64, error)

	PromptByID(id string) (*models.Prompt, error)
}
