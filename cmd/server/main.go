// Package main is the entry point for the stockpost API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"stockpost/internal/app"
	"stockpost/internal/config"
	"stockpost/internal/core/security"
	"stockpost/internal/infrastructure/cache"
	v1 "stockpost/internal/infrastructure/http/v1"
	"stockpost/internal/infrastructure/metrics"
	"stockpost/internal/infrastructure/queue"
	"stockpost/internal/infrastructure/storage/postgres"
	"stockpost/pkg/logger"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
		Service:     "stockpost-api",
		Version:     version,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting stockpost server", "env", cfg.AppEnv, "version", version)

	// --- Database ---
	pool, err := postgres.NewPool(ctx, cfg.Pool("stockpost-api"))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()
	log.Info("database connection established")

	// --- Redis ---
	var rdb redis.UniversalClient
	var enqueuer *queue.Client
	if cfg.RedisEnabled {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The cache breaker covers an unavailable Redis; startup continues.
			log.Warnw("redis ping failed", "addr", cfg.RedisAddr, "error", err)
		}
		enqueuer = queue.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, cfg.WorkerMaxRetry)
		defer enqueuer.Close()
	}

	m := metrics.New()
	m.ObservePool(pool.Stats)
	services, err := app.NewServices(cfg, app.Infra{Pool: pool, Redis: rdb, Metrics: m})
	if err != nil {
		log.Fatalw("failed to assemble services", "error", err)
	}

	invalidatorCtx, stopInvalidator := context.WithCancel(ctx)
	defer stopInvalidator()
	if services.Cache != nil {
		invalidator := cache.NewInvalidator(pool.Pool, services.Cache)
		invalidator.Start(invalidatorCtx)
		defer invalidator.Stop()
	}

	tokens, err := security.NewTokenService(security.TokenConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.JWTTTL,
	})
	if err != nil {
		log.Fatalw("failed to create token service", "error", err)
	}

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Logger:       log,
		Verifier:     tokens,
		Adjustments:  services.Adjustments,
		Positions:    services.Positions,
		PriceHistory: services.Recorder,
		Costing:      services.Costing,
		Idempotency:  services.Idempotency,
		Metrics:      m,
		Database:     pool,
		Version:      version,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		ReleaseMode:  cfg.IsProduction(),
	}
	if enqueuer != nil {
		routerCfg.Enqueuer = enqueuer
	}
	if services.Cache != nil {
		routerCfg.Breaker = services.Cache
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: app.Edge(router, app.EdgeConfig{
			Production:         cfg.IsProduction(),
			RateLimitPerMinute: cfg.RateLimitPerMinute,
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.HTTPReadTimeout,
		WriteTimeout:      cfg.HTTPWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	pool.LogStats(shutdownCtx)

	log.Info("server stopped")
}
