package masterdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/tenant"
)

// RequireDefaultCurrency resolves the default currency or fails with NoDefaultCurrency.
func RequireDefaultCurrency(ctx context.Context, r CurrencyResolver, tc tenant.Context) (*Currency, error) {
	cur, err := r.DefaultCurrency(ctx, tc)
	if err != nil {
		return nil, err
	}
	if cur == nil {
		return nil, apperror.NewNoDefaultCurrency()
	}
	return cur, nil
}

// RequireActivePeriod resolves the open period or fails with NoActivePeriod.
func RequireActivePeriod(ctx context.Context, r PeriodResolver, tc tenant.Context) (*Period, error) {
	p, err := r.ActivePeriod(ctx, tc)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperror.NewNoActivePeriod()
	}
	return p, nil
}

// EffectiveRate returns the rate converting from into base.
// Same currency converts at 1. A positive documentRate set by the user wins;
// otherwise the latest stored rate is used, failing with RateNotFound.
func EffectiveRate(ctx context.Context, r RateResolver, tc tenant.Context, from, base string, documentRate decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	if from == base {
		return decimal.NewFromInt(1), nil
	}
	if documentRate.IsPositive() {
		return documentRate, nil
	}

	rate, err := r.LatestRate(ctx, tc, from, base, at)
	if err != nil {
		return decimal.Zero, err
	}
	if rate == nil || !rate.Rate.IsPositive() {
		return decimal.Zero, apperror.NewRateNotFound(from, base)
	}
	return rate.Rate, nil
}
