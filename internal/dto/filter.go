package dto

import "github.com/noah-isme/kulate-stoly-api/internal/models"

// SaveFilterRequest captures POST /filters payload.
type SaveFilterRequest struct {
	Name  string             `json:"name" validate:"required,max=200"`
	Model models.FilterModel `json:"model" validate:"required"`
}

// FilterResponse exposes a saved filter with its decoded model.
type FilterResponse struct {
	Name  string             `json:"name"`
	Model models.FilterModel `json:"model"`
}
