package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kulate-stoly-api/internal/dto"
	"github.com/noah-isme/kulate-stoly-api/internal/models"
	"github.com/noah-isme/kulate-stoly-api/internal/service"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
	"github.com/noah-isme/kulate-stoly-api/pkg/response"
)

type exportService interface {
	CSV(ctx context.Context, sessionID string, query models.ViewQuery) (*service.ExportResult, error)
	PDF(ctx context.Context, sessionID string, query dto.ChartQuery) (*service.ExportResult, error)
}

// ExportHandler serves downloads of the current view.
type ExportHandler struct {
	service exportService
}

// NewExportHandler builds an ExportHandler.
func NewExportHandler(service exportService) *ExportHandler {
	return &ExportHandler{service: service}
}

// CSV godoc
// @Summary Download the view as CSV
// @Tags Export
// @Produce text/csv
// @Security BearerAuth
// @Param period query string false "YEAR-EVALUATION"
// @Param filter query string false "Saved filter name"
// @Param team query bool false "MA: direct reports only"
// @Success 200 {file} file
// @Router /export.csv [get]
func (h *ExportHandler) CSV(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var query models.ViewQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	result, err := h.service.CSV(c.Request.Context(), claims.SessionID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Payload)
}

// PDF godoc
// @Summary Download the charts as PDF
// @Tags Export
// @Produce application/pdf
// @Security BearerAuth
// @Param period query string false "YEAR-EVALUATION"
// @Param filter query string false "Saved filter name"
// @Param team query bool false "MA: direct reports only"
// @Param oneOnOne query string false "FULL_NAME left unmasked"
// @Param previous query bool false "Use previous period scores"
// @Success 200 {file} file
// @Router /export.pdf [get]
func (h *ExportHandler) PDF(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var query dto.ChartQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	result, err := h.service.PDF(c.Request.Context(), claims.SessionID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Payload)
}
