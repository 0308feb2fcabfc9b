package dto

import (
	"time"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
)

// CreateSessionRequest captures POST /sessions payload.
type CreateSessionRequest struct {
	ActAs *models.Impersonation `json:"act_as,omitempty"`
}

// SessionResponse is returned when a session is created.
type SessionResponse struct {
	SessionID string      `json:"session_id"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role"`
	Actor     string      `json:"actor,omitempty"`
	Periods   []string    `json:"periods"`
	Period    string      `json:"period"`
	GridKey   string      `json:"grid_key"`
}

// RenderRequest carries the table exactly as the grid rendered it.
type RenderRequest struct {
	Period string           `json:"period"`
	Rows   []models.GridRow `json:"rows" validate:"required"`
}

// ChangesResponse lists the pending edits of a session.
type ChangesResponse struct {
	Rows    []models.RowPatch `json:"rows"`
	Unsaved bool              `json:"unsaved"`
}
