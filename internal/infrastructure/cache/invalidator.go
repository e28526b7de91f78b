package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockpost/pkg/logger"
)

// MasterDataChannel is notified with the tenant id whenever currencies or rates change.
const MasterDataChannel = "masterdata_changed"

// waitInterval bounds one WaitForNotification call so shutdown is noticed.
const waitInterval = 30 * time.Second

// TenantInvalidator drops the cached entries of one tenant.
type TenantInvalidator interface {
	InvalidateTenant(ctx context.Context, tenantID string) error
}

// Invalidator listens on MasterDataChannel and evicts the tenant named in each payload.
type Invalidator struct {
	pool   *pgxpool.Pool
	target TenantInvalidator
	wait   time.Duration

	lifecycleMu sync.Mutex
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
}

// NewInvalidator creates an invalidator.
func NewInvalidator(pool *pgxpool.Pool, target TenantInvalidator) *Invalidator {
	return &Invalidator{pool: pool, target: target, wait: waitInterval}
}

// Start begins listening in the background. Safe to call more than once.
func (i *Invalidator) Start(ctx context.Context) {
	i.lifecycleMu.Lock()
	defer i.lifecycleMu.Unlock()
	if i.started {
		return
	}
	i.ctx, i.cancel = context.WithCancel(ctx)
	i.started = true

	i.wg.Add(1)
	go i.listenLoop()
	logger.Info(i.ctx, "master data invalidator started", "channel", MasterDataChannel)
}

// Stop ends listening and waits for the loop to exit.
func (i *Invalidator) Stop() {
	i.lifecycleMu.Lock()
	if !i.started {
		i.lifecycleMu.Unlock()
		return
	}
	cancel := i.cancel
	i.started = false
	i.lifecycleMu.Unlock()

	cancel()
	i.wg.Wait()
}

func (i *Invalidator) listenLoop() {
	defer i.wg.Done()

	for i.ctx.Err() == nil {
		conn, err := i.pool.Acquire(i.ctx)
		if err != nil {
			logger.Error(i.ctx, "failed to acquire connection for LISTEN", "error", err)
			i.sleep(time.Second)
			continue
		}

		if _, err := conn.Exec(i.ctx, "LISTEN "+MasterDataChannel); err != nil {
			logger.Error(i.ctx, "failed to LISTEN", "error", err)
			conn.Release()
			i.sleep(time.Second)
			continue
		}

		if i.waitForNotifications(conn.Conn()) {
			// A failed listener is not returned to the pool.
			_ = conn.Hijack().Close(i.ctx)
			i.sleep(time.Second)
			continue
		}
		conn.Release()
	}
}

type notificationWaiter interface {
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// waitForNotifications handles notifications until shutdown or a connection
// failure. It reports true when the connection must be reacquired.
func (i *Invalidator) waitForNotifications(conn notificationWaiter) bool {
	for i.ctx.Err() == nil {
		ctx, cancel := context.WithTimeout(i.ctx, i.wait)
		n, err := conn.WaitForNotification(ctx)
		timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded)
		cancel()
		if err != nil {
			if i.ctx.Err() != nil {
				return false
			}
			if timedOut {
				continue
			}
			logger.Warn(i.ctx, "notification wait failed; reacquiring connection", "error", err)
			return true
		}
		i.Handle(i.ctx, n.Payload)
	}
	return false
}

// Handle evicts the tenant in payload.
func (i *Invalidator) Handle(ctx context.Context, payload string) {
	tenantID := strings.TrimSpace(payload)
	if tenantID == "" {
		return
	}
	if err := i.target.InvalidateTenant(ctx, tenantID); err != nil {
		logger.Warn(ctx, "master data cache invalidation failed", "tenant_id", tenantID, "error", err)
		return
	}
	logger.Debug(ctx, "master data cache invalidated", "tenant_id", tenantID)
}

func (i *Invalidator) sleep(d time.Duration) {
	select {
	case <-i.ctx.Done():
	case <-time.After(d):
	}
}
