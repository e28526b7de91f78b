// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"stockpost/internal/core/security"
	"stockpost/internal/infrastructure/http/v1/dto"
	"stockpost/internal/infrastructure/http/v1/handlers"
	"stockpost/internal/infrastructure/http/v1/middleware"
	"stockpost/internal/infrastructure/metrics"
	"stockpost/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// Verifier turns bearer tokens into tenant scopes
	Verifier middleware.TokenVerifier

	Adjustments handlers.AdjustmentService
	// Enqueuer is optional; without it ?async=true approvals are refused
	Enqueuer handlers.ApprovalEnqueuer

	Positions    handlers.PositionReader
	PriceHistory handlers.PriceHistoryReader
	Costing      handlers.CostLookup

	// Idempotency is optional; nil disables Idempotency-Key handling
	Idempotency middleware.IdempotencyStore

	Metrics *metrics.Metrics

	Database handlers.Database
	Breaker  handlers.BreakerReporter
	Version  string

	CORSOrigins []string
	ReleaseMode bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}
	dto.RegisterValidators()

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(cfg.Metrics.Middleware())
	if len(cfg.CORSOrigins) > 0 {
		router.Use(corsMiddleware(cfg.CORSOrigins))
	}
	router.Use(middleware.ErrorHandler())

	// Ops endpoints (no auth)
	if cfg.Database != nil {
		healthHandler := handlers.NewHealthHandler(cfg.Database, cfg.Breaker, cfg.Version)
		router.GET("/health", healthHandler.Live)
		health := router.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
			health.GET("/info", healthHandler.Info)
		}
	}
	router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))

	// API v1
	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.Verifier))
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	adjustmentHandler := handlers.NewAdjustmentHandler(cfg.Adjustments, cfg.Enqueuer)
	RegisterWorkflowRoutes(api.Group("/stock-adjustments"), adjustmentHandler, AdjustmentPermissions)

	inventoryHandler := handlers.NewInventoryHandler(cfg.Positions, cfg.PriceHistory, cfg.Costing)
	read := middleware.RequirePermission(security.PermAdjustmentRead)
	api.GET("/inventory/positions/:productId/:storeId", read, inventoryHandler.Position)
	api.GET("/price-history", read, inventoryHandler.PriceHistory)
	api.GET("/costing/products/:productId", read, inventoryHandler.Cost)

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderIdempotencyKey, "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-Trace-ID", "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}
