// Package types provides the decimal conventions shared by all packages.
package types

import (
	"strings"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/apperror"
)

// Money represents a monetary value with full precision.
// Uses decimal.Decimal to avoid floating-point errors.
type Money = decimal.Decimal

// Quantity is a stock quantity. Persisted as NUMERIC(20,4).
type Quantity = decimal.Decimal

// Persisted scales.
const (
	QuantityScale int32 = 4
	MoneyScale    int32 = 4
	CostScale     int32 = 6
	RateScale     int32 = 8
)

// NewMoneyFromString creates a Money value from a string.
// This is the preferred method for monetary values.
func NewMoneyFromString(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// MustMoney creates a Money value from a string, panics on error.
// Use only for constants and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// ParseDecimal parses a request value and reports a validation error naming the field.
func ParseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, apperror.NewValidation("invalid decimal").
			WithDetail("field", field).
			WithDetail("value", s)
	}
	return d, nil
}

// RoundQuantity rounds to the persisted quantity scale.
func RoundQuantity(q Quantity) Quantity { return q.Round(QuantityScale) }

// RoundMoney rounds to the persisted money scale.
func RoundMoney(m Money) Money { return m.Round(MoneyScale) }

// RoundCost rounds a unit cost to the persisted average cost scale.
func RoundCost(c Money) Money { return c.Round(CostScale) }

// RoundRate rounds an exchange rate to the persisted rate scale.
func RoundRate(r decimal.Decimal) decimal.Decimal { return r.Round(RateScale) }

// WithinEpsilon reports whether |a-b| < eps.
func WithinEpsilon(a, b, eps decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(eps)
}
