package pricehistory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/core/tx"
	"stockpost/internal/core/types"
	"stockpost/internal/domain/masterdata"
	"stockpost/pkg/logger"
)

// DefaultEpsilon is the smallest cost or price change worth recording.
var DefaultEpsilon = decimal.New(1, -4)

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Epsilon decimal.Decimal
	Policy  Policy
	// OnSwallowed is called for every failure absorbed under FailOpen.
	OnSwallowed func(err error)
}

// Recorder writes price history with an explicit failure policy.
type Recorder struct {
	repo       Repository
	currencies masterdata.CurrencyResolver
	rates      masterdata.RateResolver
	txm        tx.Manager
	cfg        RecorderConfig
	now        func() time.Time
}

// NewRecorder creates a Recorder.
func NewRecorder(repo Repository, currencies masterdata.CurrencyResolver, rates masterdata.RateResolver, txm tx.Manager, cfg RecorderConfig) *Recorder {
	if !cfg.Epsilon.IsPositive() {
		cfg.Epsilon = DefaultEpsilon
	}
	if cfg.Policy.Mode == "" {
		cfg.Policy.Mode = FailClosed
	}
	return &Recorder{
		repo:       repo,
		currencies: currencies,
		rates:      rates,
		txm:        txm,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the active failure policy.
func (r *Recorder) Policy() Policy { return r.cfg.Policy }

// Material reports whether cost or price moved by at least the materiality epsilon.
func (r *Recorder) Material(ch Change) bool {
	return !types.WithinEpsilon(ch.OldCost, ch.NewCost, r.cfg.Epsilon) ||
		!types.WithinEpsilon(ch.OldPrice, ch.NewPrice, r.cfg.Epsilon)
}

// Record appends a record for a material change and returns it; immaterial changes return nil.
// Under FailOpen a failed write is rolled back to a savepoint and reported as nil, nil.
func (r *Recorder) Record(ctx context.Context, tc tenant.Context, ch Change) (*Record, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if !r.Material(ch) {
		return nil, nil
	}

	if !r.cfg.Policy.SwallowsFailures() {
		return r.write(ctx, tc, ch)
	}

	var rec *Record
	err := r.txm.RunInSavepoint(ctx, func(ctx context.Context) error {
		var err error
		rec, err = r.write(ctx, tc, ch)
		return err
	})
	if err != nil {
		logger.Warn(ctx, "price history write skipped",
			"product_id", ch.ProductID,
			"reference", ch.Reference,
			"policy", r.cfg.Policy.Mode,
			"error", err,
		)
		if r.cfg.OnSwallowed != nil {
			r.cfg.OnSwallowed(err)
		}
		return nil, nil
	}
	return rec, nil
}

func (r *Recorder) write(ctx context.Context, tc tenant.Context, ch Change) (*Record, error) {
	if id.IsNil(ch.ProductID) {
		return nil, apperror.NewValidation("price history needs a product")
	}
	module := ch.Module
	if module == "" {
		module = ModuleStockAdjustment
	}

	base := ch.BaseCurrency
	if base == "" {
		cur, err := masterdata.RequireDefaultCurrency(ctx, r.currencies, tc)
		if err != nil {
			return nil, err
		}
		base = cur.Code
	}

	currency := ch.Currency
	if currency == "" {
		currency = base
	}

	now := r.now()
	rate, err := masterdata.EffectiveRate(ctx, r.rates, tc, currency, base, ch.ExchangeRate, now)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:               id.New(),
		TenantID:         tc.TenantID,
		ProductID:        ch.ProductID,
		StoreID:          ch.StoreID,
		Module:           module,
		SourceID:         ch.SourceID,
		LineNo:           ch.LineNo,
		OldCost:          types.RoundCost(ch.OldCost),
		NewCost:          types.RoundCost(ch.NewCost),
		OldPrice:         types.RoundMoney(ch.OldPrice),
		NewPrice:         types.RoundMoney(ch.NewPrice),
		Quantity:         types.RoundQuantity(ch.Quantity),
		Currency:         currency,
		ExchangeRate:     types.RoundRate(rate),
		BaseCurrency:     base,
		EquivalentAmount: types.RoundMoney(ch.NewCost.Mul(rate)),
		Reference:        ch.Reference,
		Reason:           ch.Reason,
		RecordedBy:       tc.ActorID,
		RecordedAt:       now,
	}

	if err := r.repo.Insert(ctx, tc, rec); err != nil {
		return nil, fmt.Errorf("insert price history: %w", err)
	}
	return rec, nil
}

// List returns the trail matching f, newest first.
func (r *Recorder) List(ctx context.Context, tc tenant.Context, f Filter) ([]Record, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 500
	}
	return r.repo.List(ctx, tc, f)
}
