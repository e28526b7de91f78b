// Package pricehistory keeps the append-only trail of unit cost and selling price changes.
package pricehistory

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
)

// ModuleStockAdjustment tags records written by adjustment approval.
const ModuleStockAdjustment = "Stock Adjustment"

// Record is an immutable cost/price snapshot.
type Record struct {
	ID               id.ID           `db:"id" json:"id"`
	TenantID         string          `db:"tenant_id" json:"-"`
	ProductID        id.ID           `db:"product_id" json:"productId"`
	StoreID          *id.ID          `db:"store_id" json:"storeId,omitempty"`
	Module           string          `db:"module" json:"module"`
	SourceID         *id.ID          `db:"source_id" json:"sourceId,omitempty"`
	LineNo           int             `db:"line_no" json:"lineNo,omitempty"`
	OldCost          decimal.Decimal `db:"old_cost" json:"oldCost"`
	NewCost          decimal.Decimal `db:"new_cost" json:"newCost"`
	OldPrice         decimal.Decimal `db:"old_price" json:"oldPrice"`
	NewPrice         decimal.Decimal `db:"new_price" json:"newPrice"`
	Quantity         decimal.Decimal `db:"quantity" json:"quantity"`
	Currency         string          `db:"currency" json:"currency"`
	ExchangeRate     decimal.Decimal `db:"exchange_rate" json:"exchangeRate"`
	BaseCurrency     string          `db:"base_currency" json:"baseCurrency"`
	EquivalentAmount decimal.Decimal `db:"equivalent_amount" json:"equivalentAmount"`
	Reference        string          `db:"reference" json:"reference"`
	Reason           string          `db:"reason" json:"reason"`
	RecordedBy       string          `db:"recorded_by" json:"recordedBy"`
	RecordedAt       time.Time       `db:"recorded_at" json:"recordedAt"`
}

// Change describes a cost/price transition to record.
type Change struct {
	ProductID id.ID
	StoreID   *id.ID
	Module    string
	SourceID  *id.ID
	LineNo    int
	OldCost   decimal.Decimal
	NewCost   decimal.Decimal
	OldPrice  decimal.Decimal
	NewPrice  decimal.Decimal
	Quantity  decimal.Decimal
	Currency  string
	Reference string
	Reason    string

	// BaseCurrency may be pre-resolved by the caller; empty means resolve the tenant default.
	BaseCurrency string
	// ExchangeRate converts Currency into BaseCurrency; zero means use the latest stored rate.
	ExchangeRate decimal.Decimal
}

// Filter selects records for trail queries.
type Filter struct {
	ProductID *id.ID
	StoreID   *id.ID
	Module    string
	SourceID  *id.ID
	From      time.Time
	To        time.Time
	Limit     int
}

// FailureMode selects what a failed write does to the surrounding approval.
type FailureMode string

const (
	// FailClosed propagates the failure; the approval rolls back.
	FailClosed FailureMode = "fail_closed"
	// FailOpen rolls back only the history write, logs it and lets the approval continue.
	FailOpen FailureMode = "fail_open"
)

// Policy is the explicit failure policy of the recorder.
type Policy struct {
	Mode FailureMode
}

// ParsePolicy reads a configuration value; empty means fail_closed.
func ParsePolicy(s string) (Policy, error) {
	switch m := FailureMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return Policy{Mode: FailClosed}, nil
	case FailClosed, FailOpen:
		return Policy{Mode: m}, nil
	default:
		return Policy{}, apperror.NewValidation("unknown price history failure policy").WithDetail("value", s)
	}
}

// SwallowsFailures reports whether write failures are absorbed.
func (p Policy) SwallowsFailures() bool {
	return p.Mode == FailOpen
}
