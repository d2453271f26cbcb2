package models

import "time"

type MediaAsset struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	URL       string    `gorm:"size:500;not null" json:"url"`
	Type      string    `gorm:"size:20;not null" json:"type"`
	Title     string    `gorm:"size:200" json:"title,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	MediaTypeVideo = "video"
	MediaTypeAudio = "audio"
	MediaTypeImage = "image"
)
