package services

import (
	"errors"
	"time"

	"session-relay-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	db        *gorm.DB
	jwtSecret []byte
}

func NewAuthService(db *gorm.DB, jwtSecret string) *AuthService {
	return &AuthService{db: db, jwtSecret: []byte(jwtSecret)}
}

func (s *AuthService) Register(email, name, password string) (string, error) {
	var existing models.Facilitator
	if err := s.db.Where("email = ?", email).First(&existing).Error; err == nil {
		return "", errors.New("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	facilitator := models.Facilitator{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
	}
	if err := s.db.Create(&facilitator).Error; err != nil {
		return "", err
	}

	return s.GenerateToken(facilitator.ID)
}

func (s *AuthService) Login(email, password string) (string, error) {
	var facilitator models.Facilitator
	if err := s.db.Where("email = ?", email).First(&facilitator).Error; err != nil {
		return "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(facilitator.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	return s.GenerateToken(facilitator.ID)
}

func (s *AuthService) GenerateToken(facilitatorID string) (string, error) {
	claims := jwt.MapClaims{
		"facilitator_id": facilitatorID,
		"exp":            time.Now().Add(24 * time.Hour).Unix(),
		"iat":            time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	facilitatorID, ok := claims["facilitator_id"].(string)
	if !ok || facilitatorID == "" {
		return "", errors.New("invalid facilitator_id in token")
	}

	return facilitatorID, nil
}
