package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"stockpost/internal/infrastructure/storage/postgres"
	"stockpost/pkg/logger"
)

// OutboxEnvelope is the message published for each outbox row.
type OutboxEnvelope struct {
	ID            string          `json:"id"`
	TenantID      string          `json:"tenantId"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// RedisOutboxHandler publishes outbox rows to a Redis channel.
// report is called with every delivery outcome and may be nil.
func RedisOutboxHandler(rdb redis.UniversalClient, channel string, report func(error)) postgres.OutboxHandler {
	return postgres.OutboxHandlerFunc(func(ctx context.Context, msg *postgres.OutboxMessage) error {
		payload := json.RawMessage(msg.Payload)
		if len(payload) == 0 {
			payload = json.RawMessage("null")
		}
		body, err := json.Marshal(OutboxEnvelope{
			ID:            msg.ID.String(),
			TenantID:      msg.TenantID,
			AggregateType: msg.AggregateType,
			AggregateID:   msg.AggregateID.String(),
			EventType:     msg.EventType,
			Payload:       payload,
			CreatedAt:     msg.CreatedAt,
		})
		if err == nil {
			err = rdb.Publish(ctx, channel, body).Err()
		}
		if report != nil {
			report(err)
		}
		if err != nil {
			return fmt.Errorf("publish %s: %w", msg.EventType, err)
		}
		return nil
	})
}

// Lease runs a periodic task on at most one process at a time.
type Lease struct {
	Locker   *redislock.Client
	Key      string
	TTL      time.Duration
	Interval time.Duration
}

// Run calls fn every Interval while this process holds the lease.
// Without a Locker fn runs unconditionally.
func (l Lease) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	log := logger.FromContext(ctx).With("lease", l.Key)
	ticker := time.NewTicker(l.Interval)
	defer ticker.Stop()

	var lock *redislock.Lock
	defer func() {
		if lock != nil {
			_ = lock.Release(context.WithoutCancel(ctx))
		}
	}()

	for {
		held, err := l.hold(ctx, &lock)
		if err != nil {
			log.Warnw("lease check failed", "error", err)
		}
		if held {
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Warnw("leased task failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// hold obtains the lease or refreshes the one already held.
func (l Lease) hold(ctx context.Context, lock **redislock.Lock) (bool, error) {
	if l.Locker == nil {
		return true, nil
	}
	if *lock != nil {
		err := (*lock).Refresh(ctx, l.TTL, nil)
		if err == nil {
			return true, nil
		}
		if !errors.Is(err, redislock.ErrNotObtained) {
			// Keep the handle so shutdown still releases the key.
			return false, err
		}
		*lock = nil
	}
	obtained, err := l.Locker.Obtain(ctx, l.Key, l.TTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	*lock = obtained
	return true, nil
}

// Janitor returns the periodic maintenance task: expired idempotency keys
// are deleted and exhausted outbox rows moved to the dead-letter table.
func Janitor(idem *postgres.IdempotencyStore, relay *postgres.OutboxRelay) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		var errs []error
		if n, err := idem.CleanupExpired(ctx); err != nil {
			errs = append(errs, fmt.Errorf("cleanup idempotency keys: %w", err))
		} else if n > 0 {
			logger.Info(ctx, "cleaned up idempotency keys", "count", n)
		}
		if n, err := relay.MoveToDLQ(ctx); err != nil {
			errs = append(errs, err)
		} else if n > 0 {
			logger.Warn(ctx, "outbox messages moved to DLQ", "count", n)
		}
		return errors.Join(errs...)
	}
}

// RelayTask drains the outbox one batch per call.
func RelayTask(relay *postgres.OutboxRelay) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		n, err := relay.ProcessBatch(ctx)
		if n > 0 {
			logger.Debug(ctx, "outbox batch delivered", "count", n)
		}
		return err
	}
}
