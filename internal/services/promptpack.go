package services

import (
	"encoding/json"
	"errors"

	"session-relay-backend/internal/models"
	"session-relay-backend/internal/modules"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrPackNotFound = errors.New("prompt pack not found")

type PromptPackService struct {
	db *gorm.DB
}

func NewPromptPackService(db *gorm.DB) *PromptPackService {
	return &PromptPackService{db: db}
}

type PromptInput struct {
	Text      string   `json:"text" binding:"required"`
	TopicTags []string `json:"topic_tags"`
	Intensity int      `json:"intensity" binding:"min=1,max=5"`
}

// CreatePack validates every prompt against the target module before
// anything is written.
func (s *PromptPackService) CreatePack(facilitatorID, moduleID, title string, prompts []PromptInput) (*models.PromptPack, error) {
	mod, err := modules.Get(moduleID)
	if err != nil {
		return nil, err
	}

	pack := models.PromptPack{
		ID:            uuid.New().String(),
		FacilitatorID: facilitatorID,
		ModuleID:      moduleID,
		Title:         title,
	}
	for i, in := range prompts {
		prompt := models.Prompt{
			ID:           uuid.New().String(),
			PromptPackID: pack.ID,
			Text:         in.Text,
			Intensity:    in.Intensity,
			OrderNum:     i,
		}
		if tags, err := tagsJSON(in.TopicTags); err == nil {
			prompt.TopicTags = tags
		}
		if err := mod.ValidatePrompt(&prompt); err != nil {
			return nil, err
		}
		pack.Prompts = append(pack.Prompts, prompt)
	}

	if err := s.db.Create(&pack).Error; err != nil {
		return nil, err
	}
	return &pack, nil
}

func (s *PromptPackService) ListPacks(facilitatorID string) ([]models.PromptPack, error) {
	var packs []models.PromptPack
	err := s.db.Where("facilitator_id = ?", facilitatorID).
		Preload("Prompts", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_num ASC")
		}).
		Order("created_at DESC").
		Find(&packs).Error
	return packs, err
}

func (s *PromptPackService) GetPack(facilitatorID, packID string) (*models.PromptPack, error) {
	var pack models.PromptPack
	err := s.db.Where("id = ? AND facilitator_id = ?", packID, facilitatorID).
		Preload("Prompts", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_num ASC")
		}).
		First(&pack).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPackNotFound
	}
	return &pack, err
}

func (s *PromptPackService) DeletePack(facilitatorID, packID string) error {
	res := s.db.Where("id = ? AND facilitator_id = ?", packID, facilitatorID).
		Delete(&models.PromptPack{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrPackNotFound
	}
	return nil
}

func tagsJSON(tags []string) (datatypes.JSON, error) {
	if len(tags) == 0 {
		return nil, errors.New("no tags")
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}
