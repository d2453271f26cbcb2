package database

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"session-relay-backend/internal/config"
	"session-relay-backend/internal/models"
)

func Connect(cfg *config.Config) *gorm.DB {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to database: %v", err)
	}

	logrus.Info("database connected")
	return db
}

func AutoMigrate(db *gorm.DB) {
	err := db.AutoMigrate(
		&models.Facilitator{},
		&models.MediaAsset{},
		&models.PromptPack{},
		&models.Prompt{},
		&models.Session{},
		&models.Participant{},
		&models.Response{},
		&models.Summary{},
	)
	if err != nil {
		logrus.Fatalf("failed to auto-migrate: %v", err)
	}
	logrus.Info("database migrated")
}
