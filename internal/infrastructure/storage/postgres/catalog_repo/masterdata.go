// Package catalog_repo provides PostgreSQL access to the reference data consumed by posting:
// financial periods, currencies, exchange rates, accounts and product prices.
package catalog_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/shopspring/decimal"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/masterdata"
	"stockpost/internal/infrastructure/storage/postgres"
)

const (
	periodsTable    = "md_financial_periods"
	currenciesTable = "md_currencies"
	ratesTable      = "md_exchange_rates"
	accountsTable   = "md_accounts"
	productsTable   = "md_products"
)

var (
	periodColumns   = postgres.ExtractDBColumns[masterdata.Period]()
	currencyColumns = postgres.ExtractDBColumns[masterdata.Currency]()
	rateColumns     = postgres.ExtractDBColumns[masterdata.Rate]()
	accountColumns  = postgres.ExtractDBColumns[masterdata.Account]()
)

// MasterDataRepo implements every masterdata resolver on the md_* tables.
type MasterDataRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var (
	_ masterdata.PeriodResolver   = (*MasterDataRepo)(nil)
	_ masterdata.CurrencyResolver = (*MasterDataRepo)(nil)
	_ masterdata.RateResolver     = (*MasterDataRepo)(nil)
	_ masterdata.AccountResolver  = (*MasterDataRepo)(nil)
	_ masterdata.ProductResolver  = (*MasterDataRepo)(nil)
)

// NewMasterDataRepo creates a new master data repository.
func NewMasterDataRepo(txm *postgres.TxManager) *MasterDataRepo {
	return &MasterDataRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Resolvers returns the repository as every resolver.
func (r *MasterDataRepo) Resolvers() masterdata.Resolvers {
	return masterdata.Resolvers{Periods: r, Currencies: r, Rates: r, Accounts: r, Products: r}
}

// ActivePeriod returns the single open period. More than one open period is a Conflict.
func (r *MasterDataRepo) ActivePeriod(ctx context.Context, tc tenant.Context) (*masterdata.Period, error) {
	sql, args, err := r.builder.Select(periodColumns...).
		From(periodsTable).
		Where(squirrel.Eq{"tenant_id": tc.TenantID, "status": masterdata.PeriodOpen}).
		Limit(2).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var periods []masterdata.Period
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &periods, sql, args...); err != nil {
		return nil, fmt.Errorf("select active period: %w", err)
	}
	switch len(periods) {
	case 0:
		return nil, nil
	case 1:
		return &periods[0], nil
	default:
		return nil, apperror.NewConflict("More than one financial period is open")
	}
}

// DefaultCurrency returns the tenant's default currency. More than one default is a Conflict.
func (r *MasterDataRepo) DefaultCurrency(ctx context.Context, tc tenant.Context) (*masterdata.Currency, error) {
	sql, args, err := r.builder.Select(currencyColumns...).
		From(currenciesTable).
		Where(squirrel.Eq{"tenant_id": tc.TenantID, "is_default": true}).
		Limit(2).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var currencies []masterdata.Currency
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &currencies, sql, args...); err != nil {
		return nil, fmt.Errorf("select default currency: %w", err)
	}
	switch len(currencies) {
	case 0:
		return nil, nil
	case 1:
		return &currencies[0], nil
	default:
		return nil, apperror.NewConflict("More than one default currency is configured")
	}
}

// LatestRate returns the most recent active rate effective at or before at.
func (r *MasterDataRepo) LatestRate(ctx context.Context, tc tenant.Context, from, to string, at time.Time) (*masterdata.Rate, error) {
	sql, args, err := r.latestRateQuery(tc, from, to, at).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rate masterdata.Rate
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &rate, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get rate %s/%s: %w", from, to, err)
	}
	return &rate, nil
}

func (r *MasterDataRepo) latestRateQuery(tc tenant.Context, from, to string, at time.Time) squirrel.SelectBuilder {
	return r.builder.Select(rateColumns...).
		From(ratesTable).
		Where(squirrel.Eq{
			"tenant_id":     tc.TenantID,
			"from_currency": from,
			"to_currency":   to,
			"is_active":     true,
		}).
		Where(squirrel.LtOrEq{"effective_at": at}).
		OrderBy("effective_at DESC").
		Limit(1)
}

// Account returns an account or NotFound.
func (r *MasterDataRepo) Account(ctx context.Context, tc tenant.Context, accountID id.ID) (*masterdata.Account, error) {
	sql, args, err := r.builder.Select(accountColumns...).
		From(accountsTable).
		Where(squirrel.Eq{"tenant_id": tc.TenantID, "id": accountID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var acc masterdata.Account
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &acc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("Account", accountID.String())
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &acc, nil
}

// SellingPrice returns the product's selling price; an unknown product is unpriced.
func (r *MasterDataRepo) SellingPrice(ctx context.Context, tc tenant.Context, productID id.ID) (decimal.Decimal, error) {
	sql, args, err := r.builder.Select("selling_price").
		From(productsTable).
		Where(squirrel.Eq{"tenant_id": tc.TenantID, "id": productID}).
		ToSql()
	if err != nil {
		return decimal.Zero, fmt.Errorf("build query: %w", err)
	}

	var price decimal.Decimal
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &price, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("get selling price: %w", err)
	}
	return price, nil
}

// --- Maintenance used by the seed tool ---

// SavePeriod upserts a period.
func (r *MasterDataRepo) SavePeriod(ctx context.Context, tc tenant.Context, p masterdata.Period) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO md_financial_periods (tenant_id, id, code, start_date, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, id) DO UPDATE SET
			code = EXCLUDED.code, start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date, status = EXCLUDED.status
	`, tc.TenantID, p.ID, p.Code, p.StartDate, p.EndDate, p.Status)
	if err != nil {
		return fmt.Errorf("save period %s: %w", p.Code, err)
	}
	return nil
}

// SaveCurrency upserts a currency; a new default clears the previous one.
func (r *MasterDataRepo) SaveCurrency(ctx context.Context, tc tenant.Context, c masterdata.Currency) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		q := r.txm.GetQuerier(ctx)
		if c.IsDefault {
			if _, err := q.Exec(ctx, `UPDATE md_currencies SET is_default = false WHERE tenant_id = $1 AND code <> $2`, tc.TenantID, c.Code); err != nil {
				return fmt.Errorf("clear default currency: %w", err)
			}
		}
		_, err := q.Exec(ctx, `
			INSERT INTO md_currencies (tenant_id, code, name, is_default)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant_id, code) DO UPDATE SET name = EXCLUDED.name, is_default = EXCLUDED.is_default
		`, tc.TenantID, c.Code, c.Name, c.IsDefault)
		if err != nil {
			return fmt.Errorf("save currency %s: %w", c.Code, err)
		}
		return nil
	})
}

// SaveRate upserts an active rate.
func (r *MasterDataRepo) SaveRate(ctx context.Context, tc tenant.Context, rate masterdata.Rate) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO md_exchange_rates (tenant_id, from_currency, to_currency, rate, effective_at, is_active)
		VALUES ($1, $2, $3, $4, $5, true)
		ON CONFLICT (tenant_id, from_currency, to_currency, effective_at) DO UPDATE SET rate = EXCLUDED.rate, is_active = true
	`, tc.TenantID, rate.From, rate.To, rate.Rate, rate.EffectiveAt)
	if err != nil {
		return fmt.Errorf("save rate %s/%s: %w", rate.From, rate.To, err)
	}
	return nil
}

// SaveAccount upserts an account.
func (r *MasterDataRepo) SaveAccount(ctx context.Context, tc tenant.Context, a masterdata.Account) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO md_accounts (tenant_id, id, code, name, nature)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tenant_id, id) DO UPDATE SET code = EXCLUDED.code, name = EXCLUDED.name, nature = EXCLUDED.nature
	`, tc.TenantID, a.ID, a.Code, a.Name, a.Nature)
	if err != nil {
		return fmt.Errorf("save account %s: %w", a.Code, err)
	}
	return nil
}

// SaveProduct upserts a product with its selling price.
func (r *MasterDataRepo) SaveProduct(ctx context.Context, tc tenant.Context, productID id.ID, name string, price decimal.Decimal) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO md_products (tenant_id, id, name, selling_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, id) DO UPDATE SET name = EXCLUDED.name, selling_price = EXCLUDED.selling_price
	`, tc.TenantID, productID, name, price)
	if err != nil {
		return fmt.Errorf("save product %s: %w", name, err)
	}
	return nil
}
