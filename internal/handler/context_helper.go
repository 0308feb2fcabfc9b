package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kulate-stoly-api/internal/middleware"
	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
	"github.com/noah-isme/kulate-stoly-api/pkg/response"
)

// sessionFromContext returns the session claims or writes 401.
func sessionFromContext(c *gin.Context) (*models.SessionClaims, bool) {
	claims := middleware.SessionClaims(c)
	if claims == nil || claims.SessionID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

// bindOptionalJSON binds the body when one was sent.
func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
