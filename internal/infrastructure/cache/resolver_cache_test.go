package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/masterdata"
)

type countingSource struct {
	mu         sync.Mutex
	currencies map[string]*masterdata.Currency
	rate       *masterdata.Rate
	calls      int
}

func (s *countingSource) DefaultCurrency(_ context.Context, tc tenant.Context) (*masterdata.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.currencies[tc.TenantID], nil
}

func (s *countingSource) LatestRate(_ context.Context, _ tenant.Context, _, _ string, _ time.Time) (*masterdata.Rate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.rate, nil
}

func (s *countingSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestCache(t *testing.T, src *countingSource) (*ResolverCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	return NewResolverCache(client, src, src, DefaultConfig()), mr
}

func TestResolverCache_DefaultCurrencyHit(t *testing.T) {
	src := &countingSource{currencies: map[string]*masterdata.Currency{
		"acme": {Code: "USD", Name: "US Dollar", IsDefault: true},
	}}
	c, mr := newTestCache(t, src)
	ctx := context.Background()
	tc := tenant.New("acme", "u1")

	first, err := c.DefaultCurrency(ctx, tc)
	require.NoError(t, err)
	second, err := c.DefaultCurrency(ctx, tc)
	require.NoError(t, err)

	assert.Equal(t, "USD", first.Code)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, src.Calls())
	assert.True(t, mr.Exists("stockpost:acme:currency:default"))
}

func TestResolverCache_TenantIsolation(t *testing.T) {
	src := &countingSource{currencies: map[string]*masterdata.Currency{
		"acme":   {Code: "USD", IsDefault: true},
		"globex": {Code: "EUR", IsDefault: true},
	}}
	c, _ := newTestCache(t, src)
	ctx := context.Background()

	acme, err := c.DefaultCurrency(ctx, tenant.New("acme", "u1"))
	require.NoError(t, err)
	globex, err := c.DefaultCurrency(ctx, tenant.New("globex", "u2"))
	require.NoError(t, err)

	assert.Equal(t, "USD", acme.Code)
	assert.Equal(t, "EUR", globex.Code)
	assert.Equal(t, 2, src.Calls())
}

func TestResolverCache_MissingValueIsNotCached(t *testing.T) {
	src := &countingSource{}
	c, mr := newTestCache(t, src)
	ctx := context.Background()
	tc := tenant.New("acme", "u1")

	for range 2 {
		cur, err := c.DefaultCurrency(ctx, tc)
		require.NoError(t, err)
		assert.Nil(t, cur)
	}
	assert.Equal(t, 2, src.Calls())
	assert.Empty(t, mr.Keys())
}

func TestResolverCache_RateKeyedByDay(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	src := &countingSource{rate: &masterdata.Rate{
		From: "EUR", To: "USD", Rate: decimal.RequireFromString("1.0850"), EffectiveAt: at.Add(-time.Hour),
	}}
	c, mr := newTestCache(t, src)
	ctx := context.Background()
	tc := tenant.New("acme", "u1")

	r1, err := c.LatestRate(ctx, tc, "EUR", "USD", at)
	require.NoError(t, err)
	r2, err := c.LatestRate(ctx, tc, "EUR", "USD", at.Add(2*time.Hour))
	require.NoError(t, err)

	assert.True(t, r1.Rate.Equal(r2.Rate))
	assert.Equal(t, 1, src.Calls())
	assert.True(t, mr.Exists("stockpost:acme:rate:EUR:USD:2026-03-14"))

	_, err = c.LatestRate(ctx, tc, "EUR", "USD", at.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls())
}

func TestResolverCache_RedisDownFallsBackToSource(t *testing.T) {
	src := &countingSource{currencies: map[string]*masterdata.Currency{
		"acme": {Code: "USD", IsDefault: true},
	}}
	c, mr := newTestCache(t, src)
	mr.Close()

	ctx := context.Background()
	tc := tenant.New("acme", "u1")
	for range 3 {
		cur, err := c.DefaultCurrency(ctx, tc)
		require.NoError(t, err)
		require.NotNil(t, cur)
		assert.Equal(t, "USD", cur.Code)
	}
	assert.Equal(t, 3, src.Calls())
}

func TestResolverCache_InvalidateTenant(t *testing.T) {
	src := &countingSource{currencies: map[string]*masterdata.Currency{
		"acme":   {Code: "USD", IsDefault: true},
		"globex": {Code: "EUR", IsDefault: true},
	}}
	c, mr := newTestCache(t, src)
	ctx := context.Background()

	_, err := c.DefaultCurrency(ctx, tenant.New("acme", "u1"))
	require.NoError(t, err)
	_, err = c.DefaultCurrency(ctx, tenant.New("globex", "u2"))
	require.NoError(t, err)

	require.NoError(t, c.InvalidateTenant(ctx, "acme"))

	assert.False(t, mr.Exists("stockpost:acme:currency:default"))
	assert.True(t, mr.Exists("stockpost:globex:currency:default"))

	_, err = c.DefaultCurrency(ctx, tenant.New("acme", "u1"))
	require.NoError(t, err)
	assert.Equal(t, 3, src.Calls())
}

func TestResolverCache_Wrap(t *testing.T) {
	src := &countingSource{}
	c, _ := newTestCache(t, src)

	r := c.Wrap(masterdata.Resolvers{Currencies: src, Rates: src})
	assert.Same(t, c, r.Currencies)
	assert.Same(t, c, r.Rates)
	assert.Equal(t, "closed", c.BreakerState())
}

type recordingInvalidator struct {
	tenants []string
}

func (r *recordingInvalidator) InvalidateTenant(_ context.Context, tenantID string) error {
	r.tenants = append(r.tenants, tenantID)
	return nil
}

func TestInvalidator_Handle(t *testing.T) {
	target := &recordingInvalidator{}
	inv := NewInvalidator(nil, target)

	inv.Handle(context.Background(), " acme ")
	inv.Handle(context.Background(), "")

	assert.Equal(t, []string{"acme"}, target.tenants)
}
