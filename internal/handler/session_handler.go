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

type sessionService interface {
	Create(ctx context.Context, rolesHeader, emailHeader string, req dto.CreateSessionRequest) (*dto.SessionResponse, error)
	Grid(ctx context.Context, sessionID string, query models.ViewQuery) (*models.GridView, error)
	Render(ctx context.Context, sessionID string, req dto.RenderRequest) (*models.RenderResult, error)
	Changes(ctx context.Context, sessionID string) (*dto.ChangesResponse, error)
	Discard(ctx context.Context, sessionID string) error
	Save(ctx context.Context, sessionID string) (*models.SaveResult, error)
	Lock(ctx context.Context, sessionID string, query models.ViewQuery) (*models.SaveResult, error)
}

// SessionHandler exposes the editing session endpoints.
type SessionHandler struct {
	service     sessionService
	rolesHeader string
	emailHeader string
}

// NewSessionHandler builds a SessionHandler reading identity from the given headers.
func NewSessionHandler(service sessionService, rolesHeader, emailHeader string) *SessionHandler {
	if rolesHeader == "" {
		rolesHeader = "X-Kbc-User-Roles"
	}
	if emailHeader == "" {
		emailHeader = "X-Kbc-User-Email"
	}
	return &SessionHandler{service: service, rolesHeader: rolesHeader, emailHeader: emailHeader}
}

// Create godoc
// @Summary Open an editing session
// @Description Resolves the caller from the platform identity headers and loads the evaluation table.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSessionRequest false "Impersonation (non-production only)"
// @Success 201 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	sess, err := h.service.Create(c.Request.Context(), c.GetHeader(h.rolesHeader), c.GetHeader(h.emailHeader), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sess)
}

// Grid godoc
// @Summary Current grid view
// @Tags Grid
// @Produce json
// @Security BearerAuth
// @Param period query string false "YEAR-EVALUATION"
// @Param filter query string false "Saved filter name"
// @Param team query bool false "MA: direct reports only"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grid [get]
func (h *SessionHandler) Grid(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var query models.ViewQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grid query"))
		return
	}
	view, err := h.service.Grid(c.Request.Context(), claims.SessionID, query)
	if err != nil && !errors.Is(err, appErrors.ErrEmptyView) {
		response.Error(c, err)
		return
	}
	response.Warn(c, view, err)
}

// Render godoc
// @Summary Submit the rendered grid
// @Description Detects edits against the session baseline and accumulates the permitted ones.
// @Tags Grid
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.RenderRequest true "Rendered rows"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grid/render [post]
func (h *SessionHandler) Render(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var req dto.RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid render payload"))
		return
	}
	result, err := h.service.Render(c.Request.Context(), claims.SessionID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Changes godoc
// @Summary Pending changes
// @Tags Grid
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /changes [get]
func (h *SessionHandler) Changes(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		return
	}
	changes, err := h.service.Changes(c.Request.Context(), claims.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, changes)
}

// Discard godoc
// @Summary Discard pending changes
// @Tags Grid
// @Security BearerAuth
// @Success 204
// @Router /changes [delete]
func (h *SessionHandler) Discard(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Discard(c.Request.Context(), claims.SessionID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Save godoc
// @Summary Save pending changes
// @Tags Grid
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /save [post]
func (h *SessionHandler) Save(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		return
	}
	result, err := h.service.Save(c.Request.Context(), claims.SessionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Lock godoc
// @Summary Lock the rows of a view
// @Tags Grid
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.ViewQuery false "View selection"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /lock [post]
func (h *SessionHandler) Lock(c *gin.Context) {
	claims, ok := sessionFromContext(c)
	if !ok {
		return
	}
	var query models.ViewQuery
	if err := bindOptionalJSON(c, &query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lock payload"))
		return
	}
	result, err := h.service.Lock(c.Request.Context(), claims.SessionID, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}
