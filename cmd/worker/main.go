// Package main is the entry point for the stockpost background worker.
// It relays the outbox, runs queued approvals and cleans up expired state.
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

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"stockpost/internal/app"
	"stockpost/internal/config"
	"stockpost/internal/infrastructure/metrics"
	"stockpost/internal/infrastructure/queue"
	"stockpost/internal/infrastructure/storage/postgres"
	"stockpost/pkg/logger"
)

const (
	relayLeaseKey   = "stockpost:lease:outbox-relay"
	janitorLeaseKey = "stockpost:lease:janitor"
	janitorInterval = time.Hour
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDevelopment,
		Service:     "stockpost-worker",
		Version:     version,
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithLogger(ctx, log.WithComponent("worker"))

	log.Info("starting stockpost worker")

	pool, err := postgres.NewPool(ctx, cfg.Pool("stockpost-worker"))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if !cfg.RedisEnabled {
		log.Fatal("worker requires REDIS_ENABLED=true")
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	m := metrics.New()
	m.ObservePool(pool.Stats)
	services, err := app.NewServices(cfg, app.Infra{Pool: pool, Redis: rdb, Metrics: m})
	if err != nil {
		log.Fatalw("failed to assemble services", "error", err)
	}

	relay := postgres.NewOutboxRelay(services.TxManager, cfg.OutboxBatchSize,
		app.RedisOutboxHandler(rdb, cfg.OutboxChannel, m.OutboxDelivered))
	locker := redislock.New(rdb)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Lease{
			Locker:   locker,
			Key:      relayLeaseKey,
			TTL:      leaseTTL(cfg.OutboxPollInterval),
			Interval: cfg.OutboxPollInterval,
		}.Run(gctx, app.RelayTask(relay))
	})

	g.Go(func() error {
		return app.Lease{
			Locker:   locker,
			Key:      janitorLeaseKey,
			TTL:      leaseTTL(janitorInterval),
			Interval: janitorInterval,
		}.Run(gctx, app.Janitor(services.Idempotency, relay))
	})

	g.Go(func() error {
		worker := queue.NewWorker(queue.WorkerConfig{
			RedisOpt:        asynq.RedisClientOpt{Addr: cfg.RedisAddr},
			Concurrency:     cfg.WorkerConcurrency,
			ShutdownTimeout: cfg.ShutdownTimeout,
		}, services.Adjustments, m)
		return worker.Run(gctx)
	})

	if addr := cfg.WorkerMetricsAddr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			log.Infow("metrics server starting", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Errorw("worker stopped with error", "error", err)
	}
	log.Info("worker stopped")
}

// leaseTTL keeps a lease alive across one missed tick.
func leaseTTL(interval time.Duration) time.Duration {
	return 2*interval + 5*time.Second
}
