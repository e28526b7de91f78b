package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stockpost/internal/infrastructure/storage/postgres"
)

// Database is the part of the pool the probes need.
type Database interface {
	Ping(ctx context.Context) error
	Stats() postgres.PoolStats
}

// BreakerReporter exposes the state of the cache circuit breaker.
type BreakerReporter interface {
	BreakerState() string
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db      Database
	breaker BreakerReporter
	version string
}

// NewHealthHandler creates a new health handler. breaker may be nil when Redis is disabled.
func NewHealthHandler(db Database, breaker BreakerReporter, version string) *HealthHandler {
	return &HealthHandler{db: db, breaker: breaker, version: version}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"database": "healthy"}
	if h.breaker != nil {
		// An open breaker degrades to uncached resolvers; it does not fail readiness.
		checks["cache_breaker"] = h.breaker.BreakerState()
	}

	if err := h.db.Ping(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"app":      "stockpost",
		"version":  h.version,
		"database": h.db.Stats(),
	})
}
