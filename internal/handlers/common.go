package handlers

import "session-relay-backend/internal/models"

type ErrorResponse struct {
	Error string `json:"error" example:"something went wrong"`
}

type MessageResponse struct {
	Message string `json:"message" example:"operation successful"`
}

// Type aliases so swag can resolve models in annotations.
type Session = models.Session
type PromptPack = models.PromptPack
type Summary = models.Summary
type MediaAsset = models.MediaAsset
