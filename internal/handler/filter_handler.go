package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kulate-stoly-api/internal/dto"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
	"github.com/noah-isme/kulate-stoly-api/pkg/response"
)

type filterService interface {
	List(ctx context.Context, creator string) ([]dto.FilterResponse, error)
	Save(ctx context.Context, sessionID, creator string, req dto.SaveFilterRequest) (*dto.FilterResponse, error)
}

// FilterHandler exposes saved grid filters.
type FilterHandler struct {
	service filterService
}

// NewFilterHandler builds a FilterHandler.
func NewFilterHandler(service filterService) *FilterHandler {
	return &FilterHandler{service: service}
}

// List godoc
// @Summary List my saved filters
// @Tags Filters
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /filters [get]
func (h *FilterHandler) List(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		return
	}
	filters, err := h.service.List(c.Request.Context(), claims.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, filters, map[string]interface{}{"count": len(filters)})
}

// Save godoc
// @Summary Save a filter
// @Description Creates the filter or replaces the one with the same name.
// @Tags Filters
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.SaveFilterRequest true "Filter"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /filters [post]
func (h *FilterHandler) Save(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.SaveFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid filter payload"))
		return
	}
	filter, err := h.service.Save(c.Request.Context(), claims.SessionID, claims.Email, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, filter)
}
