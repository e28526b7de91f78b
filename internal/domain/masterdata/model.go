// Package masterdata defines the read-only reference data consumed by posting:
// financial periods, currencies, exchange rates, accounts and product prices.
// Maintenance of this data is handled elsewhere.
package masterdata

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
)

// PeriodStatus enumerates financial period states.
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "open"
	PeriodClosed PeriodStatus = "closed"
)

// Period is the open accounting window transactions are posted against.
type Period struct {
	ID        id.ID        `db:"id" json:"id"`
	Code      string       `db:"code" json:"code"`
	StartDate time.Time    `db:"start_date" json:"startDate"`
	EndDate   time.Time    `db:"end_date" json:"endDate"`
	Status    PeriodStatus `db:"status" json:"status"`
}

// Contains reports whether t falls on a day within the period (inclusive).
func (p Period) Contains(t time.Time) bool {
	day := t.UTC().Truncate(24 * time.Hour)
	start := p.StartDate.UTC().Truncate(24 * time.Hour)
	end := p.EndDate.UTC().Truncate(24 * time.Hour)
	return !day.Before(start) && !day.After(end)
}

// Currency is an ISO-4217 currency known to the tenant.
type Currency struct {
	Code      string `db:"code" json:"code"`
	Name      string `db:"name" json:"name"`
	IsDefault bool   `db:"is_default" json:"isDefault"`
}

// Rate converts one unit of From into To.
type Rate struct {
	From        string          `db:"from_currency" json:"from"`
	To          string          `db:"to_currency" json:"to"`
	Rate        decimal.Decimal `db:"rate" json:"rate"`
	EffectiveAt time.Time       `db:"effective_at" json:"effectiveAt"`
}

// IdentityRate is the rate of a currency to itself.
func IdentityRate(code string, at time.Time) Rate {
	return Rate{From: code, To: code, Rate: decimal.NewFromInt(1), EffectiveAt: at}
}

// AccountNature is the classification of a general ledger account.
type AccountNature string

const (
	NatureAsset     AccountNature = "asset"
	NatureLiability AccountNature = "liability"
	NatureEquity    AccountNature = "equity"
	NatureIncome    AccountNature = "income"
	NatureExpense   AccountNature = "expense"
)

// Account is a chart-of-accounts entry.
type Account struct {
	ID     id.ID         `db:"id" json:"id"`
	Code   string        `db:"code" json:"code"`
	Name   string        `db:"name" json:"name"`
	Nature AccountNature `db:"nature" json:"nature"`
}

// NormalizeCurrency upper-cases and validates an ISO-4217 code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", apperror.NewValidation("unknown currency").
			WithDetail("field", "currency").
			WithDetail("value", code)
	}
	return unit.String(), nil
}
