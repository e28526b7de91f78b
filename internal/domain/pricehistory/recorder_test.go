package pricehistory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/core/tx"
	"stockpost/internal/domain/costing"
	"stockpost/internal/domain/masterdata"
)

type memRepo struct {
	records   []Record
	insertErr error
}

func (m *memRepo) Insert(_ context.Context, _ tenant.Context, rec *Record) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *memRepo) List(_ context.Context, _ tenant.Context, _ Filter) ([]Record, error) {
	return m.records, nil
}

func (m *memRepo) CostHistory(_ context.Context, _ tenant.Context, _ costing.HistoryWindow) ([]costing.HistoryPoint, error) {
	return nil, nil
}

type masterStub struct {
	base  string
	rates map[string]decimal.Decimal
}

func (s masterStub) DefaultCurrency(context.Context, tenant.Context) (*masterdata.Currency, error) {
	if s.base == "" {
		return nil, nil
	}
	return &masterdata.Currency{Code: s.base, IsDefault: true}, nil
}

func (s masterStub) LatestRate(_ context.Context, _ tenant.Context, from, to string, at time.Time) (*masterdata.Rate, error) {
	r, ok := s.rates[from+to]
	if !ok {
		return nil, nil
	}
	return &masterdata.Rate{From: from, To: to, Rate: r, EffectiveAt: at}, nil
}

var (
	tc        = tenant.New("t1", "u1")
	passTxm   = tx.Func(func(ctx context.Context, fn func(context.Context) error) error { return fn(ctx) })
	usdMaster = masterStub{base: "USD", rates: map[string]decimal.Decimal{"EURUSD": decimal.RequireFromString("1.08")}}
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func costChange(oldCost, newCost string) Change {
	return Change{
		ProductID: id.New(),
		OldCost:   dec(oldCost),
		NewCost:   dec(newCost),
		OldPrice:  dec("15"),
		NewPrice:  dec("15"),
		Quantity:  dec("20"),
		Currency:  "USD",
		Reference: "ADJ-2026-000001",
		Reason:    "recount",
	}
}

func TestRecord_SkipsImmaterialChange(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, usdMaster, usdMaster, passTxm, RecorderConfig{})

	got, err := rec.Record(context.Background(), tc, costChange("10.33333", "10.33334"))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, repo.records)
}

func TestRecord_WritesMaterialChange(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, usdMaster, usdMaster, passTxm, RecorderConfig{})

	got, err := rec.Record(context.Background(), tc, costChange("10", "10.333333"))
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, repo.records, 1)

	assert.Equal(t, ModuleStockAdjustment, got.Module)
	assert.Equal(t, "USD", got.BaseCurrency)
	assert.True(t, got.ExchangeRate.Equal(decimal.NewFromInt(1)))
	assert.True(t, got.EquivalentAmount.Equal(dec("10.3333")))
	assert.Equal(t, "u1", got.RecordedBy)
}

func TestMaterial_EpsilonBoundary(t *testing.T) {
	rec := NewRecorder(&memRepo{}, usdMaster, usdMaster, passTxm, RecorderConfig{})

	assert.True(t, rec.Material(costChange("10", "10.0001")))
	assert.False(t, rec.Material(costChange("10", "10.00009")))
}

func TestRecord_PriceOnlyChangeIsMaterial(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, usdMaster, usdMaster, passTxm, RecorderConfig{})

	ch := costChange("10", "10")
	ch.NewPrice = dec("16")
	got, err := rec.Record(context.Background(), tc, ch)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestRecord_ConvertsForeignCurrency(t *testing.T) {
	repo := &memRepo{}
	rec := NewRecorder(repo, usdMaster, usdMaster, passTxm, RecorderConfig{})

	ch := costChange("10", "12")
	ch.Currency = "EUR"
	got, err := rec.Record(context.Background(), tc, ch)
	require.NoError(t, err)
	assert.True(t, got.EquivalentAmount.Equal(dec("12.96")))
	assert.Equal(t, "EUR", got.Currency)
}

func TestRecord_FailClosedPropagates(t *testing.T) {
	repo := &memRepo{insertErr: errors.New("disk full")}
	rec := NewRecorder(repo, usdMaster, usdMaster, passTxm, RecorderConfig{Policy: Policy{Mode: FailClosed}})

	_, err := rec.Record(context.Background(), tc, costChange("10", "12"))
	assert.Error(t, err)

	ch := costChange("10", "12")
	ch.Currency = "GBP"
	_, err = NewRecorder(&memRepo{}, usdMaster, usdMaster, passTxm, RecorderConfig{}).Record(context.Background(), tc, ch)
	assert.True(t, apperror.HasCode(err, apperror.CodeRateNotFound))
}

func TestRecord_FailOpenSwallowsInsideSavepoint(t *testing.T) {
	repo := &memRepo{insertErr: errors.New("disk full")}
	savepoints := 0
	txm := tx.Func(func(ctx context.Context, fn func(context.Context) error) error {
		savepoints++
		return fn(ctx)
	})
	var swallowed []error
	rec := NewRecorder(repo, usdMaster, usdMaster, txm, RecorderConfig{
		Policy:      Policy{Mode: FailOpen},
		OnSwallowed: func(err error) { swallowed = append(swallowed, err) },
	})

	got, err := rec.Record(context.Background(), tc, costChange("10", "12"))
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, 1, savepoints)
	assert.Len(t, swallowed, 1)
}

func TestRecord_NoDefaultCurrency(t *testing.T) {
	rec := NewRecorder(&memRepo{}, masterStub{}, masterStub{}, passTxm, RecorderConfig{})
	_, err := rec.Record(context.Background(), tc, costChange("10", "12"))
	assert.True(t, apperror.HasCode(err, apperror.CodeNoDefaultCurrency))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.False(t, p.SwallowsFailures())

	p, err = ParsePolicy("FAIL_OPEN")
	require.NoError(t, err)
	assert.True(t, p.SwallowsFailures())

	_, err = ParsePolicy("ignore")
	assert.Error(t, err)
}
