package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kulate-stoly-api/internal/dto"
	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
	"github.com/noah-isme/kulate-stoly-api/pkg/response"
)

type chartService interface {
	Charts(ctx context.Context, sessionID string, query dto.ChartQuery) (*models.ChartReport, error)
}

// ChartHandler serves the talent grid charts.
type ChartHandler struct {
	service chartService
}

// NewChartHandler builds a ChartHandler.
func NewChartHandler(service chartService) *ChartHandler {
	return &ChartHandler{service: service}
}

// Charts godoc
// @Summary Talent grids and trend
// @Tags Charts
// @Produce json
// @Security BearerAuth
// @Param period query string false "YEAR-EVALUATION"
// @Param filter query string false "Saved filter name"
// @Param team query bool false "MA: direct reports only"
// @Param oneOnOne query string false "FULL_NAME left unmasked"
// @Param previous query bool false "Use previous period scores"
// @Success 200 {object} response.Envelope
// @Router /charts [get]
func (h *ChartHandler) Charts(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var query dto.ChartQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid chart query"))
		return
	}
	report, err := h.service.Charts(c.Request.Context(), claims.SessionID, query)
	if err != nil && !errors.Is(err, appErrors.ErrEmptyView) {
		response.Error(c, err)
		return
	}
	response.Warn(c, report, err)
}
