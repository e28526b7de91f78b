package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/infrastructure/storage/postgres"
)

type fakeDB struct {
	pingErr error
}

func (f fakeDB) Ping(context.Context) error { return f.pingErr }

func (f fakeDB) Stats() postgres.PoolStats {
	return postgres.PoolStats{TotalConns: 4, IdleConns: 3, AcquiredConns: 1, MaxConns: 25}
}

type fixedBreaker string

func (b fixedBreaker) BreakerState() string { return string(b) }

func serveHealth(h *HealthHandler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health/live", h.Live)
	r.GET("/health/ready", h.Ready)
	r.GET("/health/info", h.Info)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealth_Ready(t *testing.T) {
	tests := []struct {
		name       string
		db         fakeDB
		breaker    BreakerReporter
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "healthy without cache",
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "healthy"},
		},
		{
			name:       "open breaker still ready",
			breaker:    fixedBreaker("open"),
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"database": "healthy", "cache_breaker": "open"},
		},
		{
			name:       "database down",
			db:         fakeDB{pingErr: errors.New("connection refused")},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"database": "unhealthy: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveHealth(NewHealthHandler(tt.db, tt.breaker, "test"), "/health/ready")

			assert.Equal(t, tt.wantStatus, w.Code)
			var body struct {
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantChecks, body.Checks)
		})
	}
}

func TestHealth_Info(t *testing.T) {
	w := serveHealth(NewHealthHandler(fakeDB{}, nil, "1.2.3"), "/health/info")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Version  string             `json:"version"`
		Database postgres.PoolStats `json:"database"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "1.2.3", body.Version)
	assert.Equal(t, int32(25), body.Database.MaxConns)
}
