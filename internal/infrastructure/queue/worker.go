package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"stockpost/internal/core/apperror"
	appctx "stockpost/internal/core/context"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/adjustment"
	"stockpost/pkg/logger"
)

// Approver approves a submitted adjustment.
type Approver interface {
	Approve(ctx context.Context, tc tenant.Context, docID id.ID, actorID string) (*adjustment.Adjustment, error)
}

// JobObserver receives the outcome of each task run.
type JobObserver interface {
	JobCompleted(taskType string, err error)
}

// ApproveHandler runs approval tasks. Business failures are final; lock timeouts and
// unclassified errors go back to asynq for another attempt.
func ApproveHandler(approver Approver, observer JobObserver) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var p ApprovePayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
		}

		tc := p.Tenant()
		ctx = tenant.WithContext(appctx.Resume(ctx, p.RequestID), tc)

		_, err := approver.Approve(ctx, tc, p.AdjustmentID, "")
		if observer != nil {
			observer.JobCompleted(t.Type(), err)
		}
		if err == nil {
			return nil
		}

		if apperror.IsRetryable(err) || !apperror.IsAppError(err) {
			logger.Warn(ctx, "queued approval will be retried", "adjustment_id", p.AdjustmentID, "error", err)
			return fmt.Errorf("approve %s: %w", p.AdjustmentID, err)
		}
		logger.Error(ctx, "queued approval failed", "adjustment_id", p.AdjustmentID, "error", err)
		return fmt.Errorf("approve %s: %w", p.AdjustmentID, errors.Join(err, asynq.SkipRetry))
	}
}

// WorkerConfig configures the asynq server.
type WorkerConfig struct {
	RedisOpt        asynq.RedisConnOpt
	Concurrency     int
	ShutdownTimeout time.Duration
}

// Worker processes approval tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker creates a worker serving TaskApproveAdjustment.
func NewWorker(cfg WorkerConfig, approver Approver, observer JobObserver) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpt, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          map[string]int{QueueDefault: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		// A rejected business rule is an outcome, not a worker failure.
		IsFailure: func(err error) bool {
			return !errors.Is(err, asynq.SkipRetry)
		},
	})
	mux := asynq.NewServeMux()
	mux.Handle(TaskApproveAdjustment, ApproveHandler(approver, observer))
	return &Worker{server: srv, mux: mux}
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	logger.Info(ctx, "approval worker started", "queue", QueueDefault)
	<-ctx.Done()
	w.server.Shutdown()
	return nil
}
