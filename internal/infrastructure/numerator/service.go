// Package numerator provides PostgreSQL implementation of document auto-numbering.
// It implements core/numerator.Generator on the tenant-scoped sys_numerators table.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "stockpost/internal/core/numerator"
	"stockpost/internal/core/tenant"
)

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFunc resolves the querier per call, so numbers can be taken inside the caller's transaction.
type QuerierFunc func(ctx context.Context) Querier

type cachedRange struct {
	current int64
	max     int64
}

// Service provides document numbering functionality using PostgreSQL.
type Service struct {
	querier QuerierFunc

	// cacheMu protects ranges; keys are tenant:sequence.
	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numerator bound to a static querier.
func New(q Querier) *Service {
	return NewWithQuerier(func(context.Context) Querier { return q })
}

// NewWithQuerier creates a numerator that resolves its querier from ctx on every call.
func NewWithQuerier(fn QuerierFunc) *Service {
	return &Service{
		querier: fn,
		ranges:  make(map[string]*cachedRange),
	}
}

// GetNextNumber generates the next document number.
func (s *Service) GetNextNumber(ctx context.Context, tc tenant.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if err := tc.Validate(); err != nil {
		return "", err
	}
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	key := buildKey(cfg, period)

	var (
		num int64
		err error
	)
	switch opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.getNextCached(ctx, tc.TenantID, key, opts)
	default:
		num, err = s.reserve(ctx, tc.TenantID, key, 1)
	}
	if err != nil {
		return "", err
	}

	return formatNumber(cfg, period, num), nil
}

// reserve bumps the counter by n and returns the new upper bound.
func (s *Service) reserve(ctx context.Context, tenantID, key string, n int64) (int64, error) {
	var upper int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_numerators (tenant_id, key, current_val)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, key) DO UPDATE SET current_val = sys_numerators.current_val + $3
		RETURNING current_val
	`, tenantID, key, n).Scan(&upper)
	if err != nil {
		return 0, fmt.Errorf("reserve %d from %s: %w", n, key, err)
	}
	return upper, nil
}

// getNextCached serves numbers from memory, refilling from DB if needed.
func (s *Service) getNextCached(ctx context.Context, tenantID, key string, opts *corenumerator.Options) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	cacheKey := tenantID + ":" + key
	rng, ok := s.ranges[cacheKey]
	if !ok {
		rng = &cachedRange{}
		s.ranges[cacheKey] = rng
	}

	if rng.current >= rng.max {
		size := opts.RangeSize
		if size <= 0 {
			size = 50
		}
		upper, err := s.reserve(ctx, tenantID, key, size)
		if err != nil {
			return 0, err
		}
		// Reserved range is (upper-size, upper].
		rng.current = upper - size
		rng.max = upper
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber sets the counter value and drops any cached range for it.
func (s *Service) SetNextNumber(ctx context.Context, tc tenant.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	if err := tc.Validate(); err != nil {
		return err
	}
	key := buildKey(cfg, period)

	var result int64
	err := s.querier(ctx).QueryRow(ctx, `
		INSERT INTO sys_numerators (tenant_id, key, current_val)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, key) DO UPDATE SET current_val = $3
		RETURNING current_val
	`, tc.TenantID, key, value).Scan(&result)

	s.cacheMu.Lock()
	delete(s.ranges, tc.TenantID+":"+key)
	s.cacheMu.Unlock()

	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func buildKey(cfg corenumerator.Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case "year":
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

func formatNumber(cfg corenumerator.Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 6
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}
