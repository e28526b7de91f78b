// Package cache provides a Redis-backed cache in front of the currency and rate resolvers,
// invalidated through PostgreSQL NOTIFY when master data changes.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/masterdata"
	"stockpost/pkg/logger"
)

const keyPrefix = "stockpost"

// Config configures the resolver cache.
type Config struct {
	TTL time.Duration
	// Breaker trips after this many consecutive Redis failures and stays open for BreakerTimeout.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:             5 * time.Minute,
		BreakerFailures: 5,
		BreakerTimeout:  30 * time.Second,
	}
}

// ResolverCache decorates the default-currency and rate resolvers.
// Misses are collapsed per key with singleflight; Redis failures trip a breaker and
// reads fall through to the source. Absent values are never cached.
type ResolverCache struct {
	rdb        redis.UniversalClient
	currencies masterdata.CurrencyResolver
	rates      masterdata.RateResolver
	cfg        Config
	breaker    *gobreaker.CircuitBreaker
	group      singleflight.Group
}

var (
	_ masterdata.CurrencyResolver = (*ResolverCache)(nil)
	_ masterdata.RateResolver     = (*ResolverCache)(nil)
)

// NewResolverCache creates the cache decorator.
func NewResolverCache(rdb redis.UniversalClient, currencies masterdata.CurrencyResolver, rates masterdata.RateResolver, cfg Config) *ResolverCache {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = DefaultConfig().BreakerFailures
	}
	failures := cfg.BreakerFailures

	return &ResolverCache{
		rdb:        rdb,
		currencies: currencies,
		rates:      rates,
		cfg:        cfg,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "redis-resolver-cache",
			Timeout: cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, redis.Nil)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn(context.Background(), "circuit breaker state changed",
					"name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
}

// Wrap returns resolvers with the currency and rate lookups served through the cache.
func (c *ResolverCache) Wrap(r masterdata.Resolvers) masterdata.Resolvers {
	r.Currencies = c
	r.Rates = c
	return r
}

// BreakerState reports the Redis breaker state for health checks.
func (c *ResolverCache) BreakerState() string {
	return c.breaker.State().String()
}

func tenantPrefix(tenantID string) string {
	return fmt.Sprintf("%s:%s:", keyPrefix, tenantID)
}

func currencyKey(tenantID string) string {
	return tenantPrefix(tenantID) + "currency:default"
}

// Rates are cached per UTC day of the lookup.
func rateKey(tenantID, from, to string, at time.Time) string {
	return fmt.Sprintf("%srate:%s:%s:%s", tenantPrefix(tenantID), from, to, at.UTC().Format(time.DateOnly))
}

// DefaultCurrency implements masterdata.CurrencyResolver.
func (c *ResolverCache) DefaultCurrency(ctx context.Context, tc tenant.Context) (*masterdata.Currency, error) {
	return cached(ctx, c, currencyKey(tc.TenantID), func(ctx context.Context) (*masterdata.Currency, error) {
		return c.currencies.DefaultCurrency(ctx, tc)
	})
}

// LatestRate implements masterdata.RateResolver.
func (c *ResolverCache) LatestRate(ctx context.Context, tc tenant.Context, from, to string, at time.Time) (*masterdata.Rate, error) {
	return cached(ctx, c, rateKey(tc.TenantID, from, to, at), func(ctx context.Context) (*masterdata.Rate, error) {
		return c.rates.LatestRate(ctx, tc, from, to, at)
	})
}

func cached[T any](ctx context.Context, c *ResolverCache, key string, load func(context.Context) (*T, error)) (*T, error) {
	if hit, ok := readKey[T](ctx, c, key); ok {
		return hit, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		val, err := load(ctx)
		if err != nil || val == nil {
			return val, err
		}
		c.writeKey(ctx, key, val)
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

func readKey[T any](ctx context.Context, c *ResolverCache, key string) (*T, bool) {
	raw, err := c.breaker.Execute(func() (any, error) {
		return c.rdb.Get(ctx, key).Bytes()
	})
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Debug(ctx, "resolver cache read skipped", "key", key, "error", err)
		}
		return nil, false
	}

	var out T
	if err := json.Unmarshal(raw.([]byte), &out); err != nil {
		logger.Warn(ctx, "resolver cache entry is corrupt", "key", key, "error", err)
		return nil, false
	}
	return &out, true
}

func (c *ResolverCache) writeKey(ctx context.Context, key string, val any) {
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if _, err := c.breaker.Execute(func() (any, error) {
		return nil, c.rdb.Set(ctx, key, data, c.cfg.TTL).Err()
	}); err != nil {
		logger.Debug(ctx, "resolver cache write skipped", "key", key, "error", err)
	}
}

// InvalidateTenant drops every cached entry of a tenant.
func (c *ResolverCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	_, err := c.breaker.Execute(func() (any, error) {
		iter := c.rdb.Scan(ctx, 0, tenantPrefix(tenantID)+"*", 100).Iterator()
		var keys []string
		for iter.Next(ctx) {
			keys = append(keys, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return nil, err
		}
		if len(keys) == 0 {
			return nil, nil
		}
		return nil, c.rdb.Del(ctx, keys...).Err()
	})
	if err != nil {
		return fmt.Errorf("invalidate tenant %s: %w", tenantID, err)
	}
	return nil
}
