package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/id"
	"stockpost/internal/infrastructure/storage/postgres"
)

func newRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisOutboxHandler_Publishes(t *testing.T) {
	rdb := newRedis(t)
	ctx := context.Background()

	sub := rdb.Subscribe(ctx, "stockpost.events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	var reported []error
	handler := RedisOutboxHandler(rdb, "stockpost.events", func(err error) { reported = append(reported, err) })

	msg := &postgres.OutboxMessage{
		ID:            id.New(),
		TenantID:      "acme",
		AggregateType: "stock_adjustment",
		AggregateID:   id.New(),
		EventType:     "stock_adjustment.approved",
		Payload:       []byte(`{"number":"ADJ-000001"}`),
	}
	require.NoError(t, handler.Handle(ctx, msg))
	require.Len(t, reported, 1)
	assert.NoError(t, reported[0])

	select {
	case m := <-sub.Channel():
		var env OutboxEnvelope
		require.NoError(t, json.Unmarshal([]byte(m.Payload), &env))
		assert.Equal(t, "acme", env.TenantID)
		assert.Equal(t, msg.AggregateID.String(), env.AggregateID)
		assert.Equal(t, "stock_adjustment.approved", env.EventType)
		assert.JSONEq(t, `{"number":"ADJ-000001"}`, string(env.Payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestRedisOutboxHandler_ReportsFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	var reported error
	handler := RedisOutboxHandler(rdb, "stockpost.events", func(err error) { reported = err })

	err := handler.Handle(context.Background(), &postgres.OutboxMessage{ID: id.New(), EventType: "x"})
	assert.Error(t, err)
	assert.Error(t, reported)
}

func TestLease_SingleHolder(t *testing.T) {
	rdb := newRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	var runs [2]atomic.Int32
	var wg sync.WaitGroup
	for i := range runs {
		lease := Lease{
			Locker:   redislock.New(rdb),
			Key:      "stockpost:lease:test",
			TTL:      time.Second,
			Interval: 10 * time.Millisecond,
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = lease.Run(ctx, func(context.Context) error {
				runs[i].Add(1)
				return nil
			})
		}(i)
	}
	wg.Wait()

	a, b := runs[0].Load(), runs[1].Load()
	assert.Positive(t, a+b)
	assert.True(t, a == 0 || b == 0, "both processes ran the task: %d/%d", a, b)

	// The holder released the key on shutdown.
	n, err := rdb.Exists(context.Background(), "stockpost:lease:test").Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLease_WithoutLockerKeepsRunningAfterErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = Lease{Interval: 5 * time.Millisecond}.Run(ctx, func(context.Context) error {
			if calls.Add(1) >= 3 {
				cancel()
			}
			return errors.New("boom")
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("lease loop did not stop")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}
