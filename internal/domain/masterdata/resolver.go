package masterdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
)

// PeriodResolver returns the tenant's single active period, or nil when none is open.
type PeriodResolver interface {
	ActivePeriod(ctx context.Context, tc tenant.Context) (*Period, error)
}

// CurrencyResolver returns the tenant's default currency, or nil when none is configured.
type CurrencyResolver interface {
	DefaultCurrency(ctx context.Context, tc tenant.Context) (*Currency, error)
}

// RateResolver returns the latest active rate from -> to effective at or before at,
// or nil when none exists.
type RateResolver interface {
	LatestRate(ctx context.Context, tc tenant.Context, from, to string, at time.Time) (*Rate, error)
}

// AccountResolver returns an account by id; a missing account is a NotFound error.
type AccountResolver interface {
	Account(ctx context.Context, tc tenant.Context, accountID id.ID) (*Account, error)
}

// ProductResolver returns the current selling price of a product (zero when unpriced).
type ProductResolver interface {
	SellingPrice(ctx context.Context, tc tenant.Context, productID id.ID) (decimal.Decimal, error)
}

// Resolvers bundles the collaborators consulted during approval.
type Resolvers struct {
	Periods    PeriodResolver
	Currencies CurrencyResolver
	Rates      RateResolver
	Accounts   AccountResolver
	Products   ProductResolver
}
