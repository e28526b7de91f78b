package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/pkg/logger"
)

const defaultMaxRetry = 5

// Client enqueues approval tasks.
type Client struct {
	client   *asynq.Client
	maxRetry int
}

// NewClient creates a client on the given Redis connection.
func NewClient(redisOpt asynq.RedisConnOpt, maxRetry int) *Client {
	if maxRetry <= 0 {
		maxRetry = defaultMaxRetry
	}
	return &Client{client: asynq.NewClient(redisOpt), maxRetry: maxRetry}
}

// EnqueueApprove schedules an approval and returns the task id.
// A task for the same document that is still queued yields a Conflict.
func (c *Client) EnqueueApprove(ctx context.Context, tc tenant.Context, docID id.ID) (string, error) {
	task, err := NewApproveTask(ctx, tc, docID, c.maxRetry)
	if err != nil {
		return "", err
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			return "", apperror.NewConflict("approval is already queued").
				WithDetail("adjustment_id", docID.String())
		}
		return "", fmt.Errorf("enqueue %s: %w", TaskApproveAdjustment, err)
	}

	logger.Info(ctx, "stock adjustment approval queued",
		"adjustment_id", docID,
		"task_id", info.ID,
		"queue", info.Queue)
	return info.ID, nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.client.Close()
}
