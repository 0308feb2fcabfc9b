package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/kulate-stoly-api/internal/models"
	appErrors "github.com/noah-isme/kulate-stoly-api/pkg/errors"
	"github.com/noah-isme/kulate-stoly-api/pkg/response"
)

type permissionChecker interface {
	Authorize(role models.Role, object, action string) error
}

// Authorize enforces the role policy for an object/action pair. It must run
// after SessionAuth.
func Authorize(checker permissionChecker, object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := SessionClaims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if err := checker.Authorize(claims.Role, object, action); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Next()
	}
}
