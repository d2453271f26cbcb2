package services

import (
	"errors"

	"session-relay-backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSummaryNotFound = errors.New("summary not found")
)

// SessionQueryService serves the facilitator's REST read side. All
// live mutation goes through the websocket dispatcher; these queries
// exist for dashboards and the post-session summary fetch.
type SessionQueryService struct {
	db *gorm.DB
}

func NewSessionQueryService(db *gorm.DB) *SessionQueryService {
	return &SessionQueryService{db: db}
}

func (s *SessionQueryService) ListSessions(facilitatorID string) ([]models.Session, error) {
	var sessions []models.Session
	err := s.db.Where("facilitator_id = ?", facilitatorID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

// GetSession returns the session with its participants preloaded. The
// facilitator detail view is the one place pseudonymous ids are
// exposed over REST.
func (s *SessionQueryService) GetSession(facilitatorID, sessionID string) (*models.Session, error) {
	var sess models.Session
	err := s.db.Where("id = ? AND facilitator_id = ?", sessionID, facilitatorID).
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC, id ASC")
		}).
		Preload("IntroMedia").
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	return &sess, err
}

func (s *SessionQueryService) GetSummary(facilitatorID, sessionID string) (*models.Summary, error) {
	if _, err := s.GetSession(facilitatorID, sessionID); err != nil {
		return nil, err
	}
	var summary models.Summary
	err := s.db.Where("session_id = ?", sessionID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSummaryNotFound
	}
	return &summary, err
}
