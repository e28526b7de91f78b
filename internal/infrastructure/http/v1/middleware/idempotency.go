package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/tenant"
	"stockpost/internal/infrastructure/storage/postgres"
	"stockpost/pkg/logger"
)

const (
	HeaderIdempotencyKey    = "Idempotency-Key"
	maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

	ctxIdempotencyKey   = "idempotency_key"
	ctxIdempotencyStore = "idempotency_store"
)

// IdempotencyStore records keys and the responses to replay for them.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, tc tenant.Context, key, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, tc tenant.Context, key string, statusCode int, contentType string, body []byte) error
}

// Idempotency replays the stored response of a repeated mutating request that carries
// an Idempotency-Key. It must run after Auth.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch &&
			c.Request.Method != http.MethodDelete {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 255 {
			_ = c.Error(apperror.NewValidation("idempotency key is too long").WithDetail("max_length", 255))
			c.Abort()
			return
		}

		tc, ok := Tenant(c)
		if !ok {
			_ = c.Error(apperror.NewUnauthorized("authentication required"))
			c.Abort()
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1))
		if err != nil {
			_ = c.Error(apperror.NewValidation("unreadable request body"))
			c.Abort()
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		// The query string is part of the request: ?async=true must not replay a sync approval.
		hash := sha256.New()
		hash.Write([]byte(c.Request.URL.RawQuery))
		hash.Write([]byte{0})
		hash.Write(body)
		requestHash := hex.EncodeToString(hash.Sum(nil))

		operation := c.Request.Method + " " + c.FullPath()

		replay, err := store.AcquireKey(c.Request.Context(), tc, key, operation, requestHash)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		if replay != nil {
			c.Header("Idempotent-Replayed", "true")
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyKey, key)
		c.Set(ctxIdempotencyStore, store)
		c.Next()
	}
}

// CompleteIdempotency stores the response written for the current request, if the request
// acquired an idempotency key. Failures are logged; the response is sent regardless.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, body []byte) {
	key := c.GetString(ctxIdempotencyKey)
	if key == "" {
		return
	}
	raw, ok := c.Get(ctxIdempotencyStore)
	if !ok {
		return
	}
	store, ok := raw.(IdempotencyStore)
	if !ok {
		return
	}
	tc, ok := Tenant(c)
	if !ok {
		return
	}

	// Completion must survive a client that hung up mid-request.
	ctx := context.WithoutCancel(c.Request.Context())
	if err := store.CompleteKey(ctx, tc, key, statusCode, contentType, body); err != nil {
		logger.Warn(ctx, "idempotency completion failed", "key", key, "error", err)
	}
	c.Set(ctxIdempotencyKey, "")
}
