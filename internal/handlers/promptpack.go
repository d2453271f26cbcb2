package handlers

import (
	"errors"
	"net/http"

	"session-relay-backend/internal/modules"
	"session-relay-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type PromptPackHandler struct {
	packService *services.PromptPackService
}

func NewPromptPackHandler(packService *services.PromptPackService) *PromptPackHandler {
	return &PromptPackHandler{packService: packService}
}

type CreatePackRequest struct {
	ModuleID string                 `json:"module_id" binding:"required" example:"thought_reframe_relay"`
	Title    string                 `json:"title" binding:"required,max=200" example:"Week 3 reframes"`
	Prompts  []services.PromptInput `json:"prompts" binding:"required,min=1,dive"`
}

// CreatePack godoc
// @Summary      Create a prompt pack
// @Description  Create a pack of prompts validated against the target module
// @Tags         prompt-packs
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreatePackRequest true "Pack data"
// @Success      201 {object} PromptPack
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/prompt-packs [post]
func (h *PromptPackHandler) CreatePack(c *gin.Context) {
	facilitatorID := c.GetString("facilitator_id")

	var req CreatePackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	pack, err := h.packService.CreatePack(facilitatorID, req.ModuleID, req.Title, req.Prompts)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, modules.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, pack)
}

// ListPacks godoc
// @Summary      List my prompt packs
// @Tags         prompt-packs
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} PromptPack
// @Router       /api/v1/prompt-packs [get]
func (h *PromptPackHandler) ListPacks(c *gin.Context) {
	facilitatorID := c.GetString("facilitator_id")

	packs, err := h.packService.ListPacks(facilitatorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, packs)
}

// GetPack godoc
// @Summary      Get a prompt pack
// @Tags         prompt-packs
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Pack ID"
// @Success      200 {object} PromptPack
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/prompt-packs/{id} [get]
func (h *PromptPackHandler) GetPack(c *gin.Context) {
	facilitatorID := c.GetString("facilitator_id")

	pack, err := h.packService.GetPack(facilitatorID, c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrPackNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "prompt pack not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, pack)
}

// DeletePack godoc
// @Summary      Delete a prompt pack
// @Tags         prompt-packs
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Pack ID"
// @Success      200 {object} MessageResponse
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/prompt-packs/{id} [delete]
func (h *PromptPackHandler) DeletePack(c *gin.Context) {
	facilitatorID := c.GetString("facilitator_id")

	if err := h.packService.DeletePack(facilitatorID, c.Param("id")); err != nil {
		if errors.Is(err, services.ErrPackNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "prompt pack not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "prompt pack deleted"})
}

type ModuleInfo struct {
	ID                 string   `json:"id"`
	DisplayName        string   `json:"display_name"`
	Instructions       string   `json:"instructions"`
	SupportsPass       bool     `json:"supports_pass"`
	FacilitatorActions []string `json:"facilitator_actions,omitempty"`
}

// ListModules godoc
// @Summary      List available session modules
// @Tags         modules
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} ModuleInfo
// @Router       /api/v1/modules [get]
func (h *PromptPackHandler) ListModules(c *gin.Context) {
	out := make([]ModuleInfo, 0)
	for _, mod := range modules.All() {
		out = append(out, ModuleInfo{
			ID:                 mod.ID(),
			DisplayName:        mod.DisplayName(),
			Instructions:       mod.Instructions(),
			SupportsPass:       mod.SupportsPass(),
			FacilitatorActions: mod.FacilitatorActions(),
		})
	}
	c.JSON(http.StatusOK, out)
}
