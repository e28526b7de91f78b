package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockpost/internal/core/apperror"
	"stockpost/pkg/logger"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Retryable bool           `json:"retryable"`
}

// ErrorHandler renders the last error registered on the context.
// Unknown errors become INTERNAL_ERROR without leaking their text.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		status := http.StatusInternalServerError
		body := ErrorBody{
			Code:    apperror.CodeInternal,
			Message: "Internal server error",
			Details: map[string]any{"request_id": c.GetString("request_id")},
		}

		if appErr, ok := apperror.AsAppError(err); ok {
			status = appErr.HTTPStatus
			if status == 0 {
				status = http.StatusInternalServerError
			}
			body = ErrorBody{
				Code:      appErr.Code,
				Message:   appErr.Message,
				Details:   appErr.Details,
				Retryable: appErr.Retryable,
			}
			if status >= http.StatusInternalServerError {
				logger.Error(ctx, "request failed", "code", appErr.Code, "error", err)
			} else if appErr.Err != nil {
				logger.Warn(ctx, "request rejected", "code", appErr.Code, "cause", appErr.Err)
			}
		} else {
			logger.Error(ctx, "unhandled error", "error", err)
		}

		raw, _ := json.Marshal(body)
		CompleteIdempotency(c, status, gin.MIMEJSON, raw)
		c.Data(status, gin.MIMEJSON, raw)
	}
}
