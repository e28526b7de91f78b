// Package middleware provides HTTP middleware for the API.
package middleware

import (
	"github.com/gin-gonic/gin"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/security"
)

// RequirePermission rejects callers whose token lacks permission.
// Admins have every permission.
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := Tenant(c)
		if !ok {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}
		if err := security.RequirePermission(tc, permission); err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Next()
	}
}
