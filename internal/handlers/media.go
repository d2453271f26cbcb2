package handlers

import (
	"errors"
	"net/http"

	"session-relay-backend/internal/services"

	"github.com/gin-gonic/gin"
)

type MediaHandler struct {
	mediaService *services.MediaService
}

func NewMediaHandler(mediaService *services.MediaService) *MediaHandler {
	return &MediaHandler{mediaService: mediaService}
}

type CreateMediaRequest struct {
	URL   string `json:"url" binding:"required,url" example:"https://cdn.example/intro.mp4"`
	Type  string `json:"type" binding:"required,oneof=video audio image" example:"video"`
	Title string `json:"title" binding:"max=200" example:"Module intro"`
}

// CreateMedia godoc
// @Summary      Register an intro media asset
// @Tags         media
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateMediaRequest true "Media data"
// @Success      201 {object} MediaAsset
// @Failure      400 {object} ErrorResponse
// @Router       /api/v1/media [post]
func (h *MediaHandler) CreateMedia(c *gin.Context) {
	var req CreateMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	asset, err := h.mediaService.Create(req.URL, req.Type, req.Title)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, asset)
}

// ListMedia godoc
// @Summary      List intro media assets
// @Tags         media
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} MediaAsset
// @Router       /api/v1/media [get]
func (h *MediaHandler) ListMedia(c *gin.Context) {
	assets, err := h.mediaService.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, assets)
}

// GetMedia godoc
// @Summary      Get one media asset
// @Tags         media
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Media ID"
// @Success      200 {object} MediaAsset
// @Failure      404 {object} ErrorResponse
// @Router       /api/v1/media/{id} [get]
func (h *MediaHandler) GetMedia(c *gin.Context) {
	asset, err := h.mediaService.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrMediaNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "media asset not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, asset)
}
