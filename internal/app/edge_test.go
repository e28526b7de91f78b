package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestEdge_SecurityHeaders(t *testing.T) {
	h := Edge(okHandler(), EdgeConfig{})

	w := serve(h, "/api/v1/stock-adjustments")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestEdge_RateLimit(t *testing.T) {
	h := Edge(okHandler(), EdgeConfig{RateLimitPerMinute: 2})

	assert.Equal(t, http.StatusOK, serve(h, "/api/v1/stock-adjustments").Code)
	assert.Equal(t, http.StatusOK, serve(h, "/api/v1/stock-adjustments").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, "/api/v1/stock-adjustments").Code)

	// Probes are never limited.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, serve(h, "/health/ready").Code)
	}
}
