package handlers

import (
	"errors"
	"net/http"

	"session-relay-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessionQuery *services.SessionQueryService
}

func NewSessionHandler(sessionQuery *services.SessionQueryService) *SessionHandler {
	return &SessionHandler{sessionQuery: sessionQuery}
}

// ListSessions godoc
// @Summary      List my sessions
// @Description  List all sessions owned by the authenticated facilitator
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} Session
// @Router       /api/v1/sessions [get]
func (h *SessionHandler) ListSessions(c *gin.Context) {
	facilitatorID := c.GetString("facilitator_id")

	sessions, err := h.sessionQuery.ListSessions(facilitatorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// GetSession godoc
// @Summary      Get session detail
// @Description  Session with its participant roster, pseudonymous ids included
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Session ID"
// @Success      200 {object} Session
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	facilitatorID := c.GetString("facilitator_id")

	sess, err := h.sessionQuery.GetSession(facilitatorID, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// GetSummary godoc
// @Summary      Get session summary
// @Description  Post-session summary: attendance note and saved responses
// @Tags         sessions
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Session ID"
// @Success      200 {object} Summary
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/sessions/{id}/summary [get]
func (h *SessionHandler) GetSummary(c *gin.Context) {
	facilitatorID := c.GetString("facilitator_id")

	summary, err := h.sessionQuery.GetSummary(facilitatorID, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrSessionNotFound) || errors.Is(err, services.ErrSummaryNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
