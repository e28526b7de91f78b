package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/tenant"
	"stockpost/pkg/logger"
)

// TokenVerifier turns a bearer token into the tenant scope of the caller.
type TokenVerifier interface {
	Verify(token string) (tenant.Context, error)
}

// Auth validates the bearer token and stores the tenant scope in the request context.
func Auth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		tc, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			logger.Debug(c.Request.Context(), "token rejected", "error", err)
			abortUnauthorized(c, "invalid token")
			return
		}

		c.Request = c.Request.WithContext(tenant.WithContext(c.Request.Context(), tc))
		c.Set("tenant_id", tc.TenantID)
		c.Set("user_id", tc.ActorID)
		c.Next()
	}
}

// Tenant returns the scope stored by Auth.
func Tenant(c *gin.Context) (tenant.Context, bool) {
	return tenant.FromContext(c.Request.Context())
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
