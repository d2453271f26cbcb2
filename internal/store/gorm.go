package store

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"session-relay-backend/internal/models"
)

// Gorm is the database-backed SessionStore.
type Gorm struct {
	db *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) WithTx(fn func(SessionStore) error) error {
	return g.db.Transaction(func(tx *gorm.DB) error {
		return fn(&Gorm{db: tx})
	})
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (g *Gorm) CreateSession(s *models.Session) error {
	return g.db.Create(s).Error
}

func (g *Gorm) SessionByID(id string) (*models.Session, error) {
	var s models.Session
	if err := g.db.Preload("IntroMedia").First(&s, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (g *Gorm) SessionByRoomCode(code string) (*models.Session, error) {
	var s models.Session
	if err := g.db.Preload("IntroMedia").First(&s, "room_code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (g *Gorm) SaveSession(s *models.Session) error {
	return g.db.Save(s).Error
}

func (g *Gorm) RoomCodeTaken(code string) (bool, error) {
	var count int64
	err := g.db.Model(&models.Session{}).
		Where("room_code = ? AND status != ?", code, models.SessionStatusEnded).
		Count(&count).Error
	return count > 0, err
}

func (g *Gorm) SessionsByFacilitator(facilitatorID string) ([]models.Session, error) {
	var sessions []models.Session
	err := g.db.Where("facilitator_id = ?", facilitatorID).
		Order("created_at DESC").
		Find(&sessions).Error
	return sessions, err
}

func (g *Gorm) DeleteExpiredSessions(now time.Time) (int64, error) {
	res := g.db.Where("purge_after <= ? AND status != ?", now, models.SessionStatusEnded).
		Delete(&models.Session{})
	return res.RowsAffected, res.Error
}

func (g *Gorm) CreateParticipant(p *models.Participant) error {
	return g.db.Create(p).Error
}

func (g *Gorm) SaveParticipant(p *models.Participant) error {
	return g.db.Save(p).Error
}

func (g *Gorm) ParticipantByConn(sessionID, connID string) (*models.Participant, error) {
	var p models.Participant
	if err := g.db.First(&p, "session_id = ? AND conn_id = ?", sessionID, connID).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// ClearConnection detaches a dropped connection from its participant.
// The connection handle is the only field a disconnect may touch.
func (g *Gorm) ClearConnection(connID string) error {
	return g.db.Model(&models.Participant{}).
		Where("conn_id = ?", connID).
		Update("conn_id", nil).Error
}

func (g *Gorm) ListParticipants(sessionID string) ([]models.Participant, error) {
	var participants []models.Participant
	err := g.db.Where("session_id = ?", sessionID).
		Order("joined_at ASC, id ASC").
		Find(&participants).Error
	return participants, err
}

func (g *Gorm) CreateResponse(r *models.Response) error {
	return g.db.Create(r).Error
}

func (g *Gorm) ResponseByID(id string) (*models.Response, error) {
	var r models.Response
	if err := g.db.First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (g *Gorm) SaveResponse(r *models.Response) error {
	return g.db.Save(r).Error
}

func (g *Gorm) ListResponses(sessionID string) ([]models.Response, error) {
	var responses []models.Response
	err := g.db.Where("session_id = ?", sessionID).
		Order("submitted_at ASC, id ASC").
		Find(&responses).Error
	return responses, err
}

func (g *Gorm) ListResponsesByFlags(sessionID string, spotlighted, hidden, saved *bool) ([]models.Response, error) {
	q := g.db.Where("session_id = ?", sessionID)
	if spotlighted != nil {
		q = q.Where("spotlighted = ?", *spotlighted)
	}
	if hidden != nil {
		q = q.Where("hidden = ?", *hidden)
	}
	if saved != nil {
		q = q.Where("saved_for_followup = ?", *saved)
	}
	var responses []models.Response
	err := q.Order("submitted_at ASC, id ASC").Find(&responses).Error
	return responses, err
}

func (g *Gorm) CountSpotlighted(sessionID string) (int, error) {
	var count int64
	err := g.db.Model(&models.Response{}).
		Where("session_id = ? AND spotlighted = ?", sessionID, true).
		Count(&count).Error
	return int(count), err
}

func (g *Gorm) DeleteResponsesForPrompt(sessionID, promptID string) (int64, error) {
	res := g.db.Where("session_id = ? AND prompt_id = ?", sessionID, promptID).
		Delete(&models.Response{})
	return res.RowsAffected, res.Error
}

func (g *Gorm) CreateSummary(sum *models.Summary) error {
	return g.db.Create(sum).Error
}

func (g *Gorm) SummaryBySession(sessionID string) (*models.Summary, error) {
	var sum models.Summary
	if err := g.db.First(&sum, "session_id = ?", sessionID).Error; err != nil {
		return nil, translate(err)
	}
	return &sum, nil
}

func (g *Gorm) DeleteExpiredSummaries(now time.Time) (int64, error) {
	res := g.db.Where("purge_after <= ?", now).Delete(&models.Summary{})
	return res.RowsAffected, res.Error
}

func (g *Gorm) PromptByID(id string) (*models.Prompt, error) {
	var p models.Prompt
	if err := g.db.First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}
