package models

import (
	"time"

	"gorm.io/datatypes"
)

type PromptPack struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	FacilitatorID string    `gorm:"size:36;not null;index" json:"facilitator_id"`
	ModuleID      string    `gorm:"size:64;not null" json:"module_id"`
	Title         string    `gorm:"size:200;not null" json:"title"`
	Prompts       []Prompt  `gorm:"foreignKey:PromptPackID;constraint:OnDelete:CASCADE" json:"prompts,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type Prompt struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	PromptPackID string         `gorm:"size:36;not null;index" json:"prompt_pack_id"`
	Text         string         `gorm:"type:text;not null" json:"text"`
	TopicTags    datatypes.JSON `json:"topic_tags,omitempty"`
	Intensity    int            `gorm:"not null;default:1" json:"intensity"`
	OrderNum     int            `gorm:"not null;default:0" json:"order_num"`
	CreatedAt    time.Time      `json:"created_at"`
}
