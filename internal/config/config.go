package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	DBHost                string
	DBPort                string
	DBUser                string
	DBPassword            string
	DBName                string
	JWTSecret             string
	ServerPort            string
	SessionRetentionHours int
	SummaryRetentionHours int
	PurgeIntervalMinutes  int
	SpotlightMax          int
	CountBroadcastSeconds int
}

func Load() *Config {
	if err := godotenv.Load(); err == nil {
		logrus.Info("loaded configuration from .env")
	}

	return &Config{
		DBHost:                getEnv("DB_HOST", "localhost"),
		DBPort:                getEnv("DB_PORT", "5432"),
		DBUser:                getEnv("DB_USER", "postgres"),
		DBPassword:            getEnv("DB_PASSWORD", "postgres"),
		DBName:                getEnv("DB_NAME", "sessionrelay"),
		JWTSecret:             getEnv("JWT_SECRET", "super-secret-key-change-me"),
		ServerPort:            getEnv("SERVER_PORT", "8080"),
		SessionRetentionHours: getEnvInt("SESSION_RETENTION_HOURS", 72),
		SummaryRetentionHours: getEnvInt("SUMMARY_RETENTION_HOURS", 72),
		PurgeIntervalMinutes:  getEnvInt("PURGE_INTERVAL_MINUTES", 60),
		SpotlightMax:          getEnvInt("SPOTLIGHT_MAX", 6),
		CountBroadcastSeconds: getEnvInt("COUNT_BROADCAST_SECONDS", 2),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
