package services

import (
	"errors"

	"session-relay-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrMediaNotFound = errors.New("media asset not found")

type MediaService struct {
	db *gorm.DB
}

func NewMediaService(db *gorm.DB) *MediaService {
	return &MediaService{db: db}
}

func (s *MediaService) Create(url, mediaType, title string) (*models.MediaAsset, error) {
	switch mediaType {
	case models.MediaTypeVideo, models.MediaTypeAudio, models.MediaTypeImage:
	default:
		return nil, errors.New("unknown media type")
	}
	asset := models.MediaAsset{
		ID:    uuid.New().String(),
		URL:   url,
		Type:  mediaType,
		Title: title,
	}
	if err := s.db.Create(&asset).Error; err != nil {
		return nil, err
	}
	return &asset, nil
}

func (s *MediaService) List() ([]models.MediaAsset, error) {
	var assets []models.MediaAsset
	err := s.db.Order("created_at DESC").Find(&assets).Error
	return assets, err
}

func (s *MediaService) Get(id string) (*models.MediaAsset, error) {
	var asset models.MediaAsset
	err := s.db.First(&asset, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMediaNotFound
	}
	return &asset, err
}
