package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "stockpost/internal/core/numerator"
	"stockpost/internal/core/tenant"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates sys_numerators: args are (tenant, key, n).
type mockQuerier struct {
	mu     sync.Mutex
	values map[string]int64
	calls  int
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = make(map[string]int64)
	}
	m.calls++

	k := args[0].(string) + "/" + args[1].(string)
	m.values[k] += args[2].(int64)
	return &mockRow{val: m.values[k]}
}

var period = time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	tc := tenant.New("t1", "u1")
	cfg := corenumerator.AdjustmentConfig()

	num, err := svc.GetNextNumber(ctx, tc, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ADJ-2026-000001" {
		t.Errorf("expected ADJ-2026-000001, got %s", num)
	}

	num, err = svc.GetNextNumber(ctx, tc, cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ADJ-2026-000002" {
		t.Errorf("expected ADJ-2026-000002, got %s", num)
	}
}

func TestGetNextNumber_TenantsDoNotShareCounters(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := corenumerator.AdjustmentConfig()

	_, _ = svc.GetNextNumber(ctx, tenant.New("t1", "u1"), cfg, nil, period)
	num, err := svc.GetNextNumber(ctx, tenant.New("t2", "u1"), cfg, nil, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ADJ-2026-000001" {
		t.Errorf("expected first number for second tenant, got %s", num)
	}
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	tc := tenant.New("t1", "u1")
	cfg := corenumerator.Config{Prefix: "ORD", IncludeYear: true, PadWidth: 5, ResetPeriod: "year"}
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	num, err := svc.GetNextNumber(ctx, tc, cfg, opts, period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "ORD-2026-00001" {
		t.Errorf("expected ORD-2026-00001, got %s", num)
	}

	num, _ = svc.GetNextNumber(ctx, tc, cfg, opts, period)
	if num != "ORD-2026-00002" {
		t.Errorf("expected ORD-2026-00002, got %s", num)
	}
	if q.calls != 1 {
		t.Errorf("expected one reservation, got %d", q.calls)
	}

	for i := 0; i < 8; i++ {
		_, _ = svc.GetNextNumber(ctx, tc, cfg, opts, period)
	}

	num, _ = svc.GetNextNumber(ctx, tc, cfg, opts, period)
	if num != "ORD-2026-00011" {
		t.Errorf("expected ORD-2026-00011, got %s", num)
	}
	if q.calls != 2 {
		t.Errorf("expected a second reservation, got %d", q.calls)
	}
}

func TestGetNextNumber_RequiresTenant(t *testing.T) {
	svc := New(&mockQuerier{})
	_, err := svc.GetNextNumber(context.Background(), tenant.Context{}, corenumerator.AdjustmentConfig(), nil, period)
	if err == nil {
		t.Fatal("expected error without tenant")
	}
}
