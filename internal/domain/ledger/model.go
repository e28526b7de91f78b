// Package ledger posts balanced double-entry rows to the general ledger.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/id"
	"stockpost/internal/domain/masterdata"
)

// Side of a ledger row.
type Side string

const (
	Debit  Side = "debit"
	Credit Side = "credit"
)

// Journal groups the rows posted by one source document.
type Journal struct {
	ID              id.ID           `db:"id" json:"id"`
	TenantID        string          `db:"tenant_id" json:"-"`
	PeriodID        id.ID           `db:"period_id" json:"periodId"`
	SourceModule    string          `db:"source_module" json:"sourceModule"`
	SourceID        id.ID           `db:"source_id" json:"sourceId"`
	ReferenceNumber string          `db:"reference_number" json:"referenceNumber"`
	Currency        string          `db:"currency" json:"currency"`
	ExchangeRate    decimal.Decimal `db:"exchange_rate" json:"exchangeRate"`
	BaseCurrency    string          `db:"base_currency" json:"baseCurrency"`
	TotalDebit      decimal.Decimal `db:"total_debit" json:"totalDebit"`
	TotalCredit     decimal.Decimal `db:"total_credit" json:"totalCredit"`
	PostedBy        string          `db:"posted_by" json:"postedBy"`
	PostedAt        time.Time       `db:"posted_at" json:"postedAt"`
}

// Balanced reports whether debits equal credits exactly.
func (j *Journal) Balanced() bool {
	return j.TotalDebit.Equal(j.TotalCredit)
}

// Row is one side of a posted pair.
type Row struct {
	ID               id.ID                    `db:"id" json:"id"`
	TenantID         string                   `db:"tenant_id" json:"-"`
	JournalID        id.ID                    `db:"journal_id" json:"journalId"`
	SourceID         id.ID                    `db:"source_id" json:"sourceId"`
	LineNo           int                      `db:"line_no" json:"lineNo"`
	Side             Side                     `db:"side" json:"side"`
	AccountID        id.ID                    `db:"account_id" json:"accountId"`
	AccountCode      string                   `db:"account_code" json:"accountCode"`
	AccountNature    masterdata.AccountNature `db:"account_nature" json:"accountNature"`
	Amount           decimal.Decimal          `db:"amount" json:"amount"`
	OriginalAmount   decimal.Decimal          `db:"original_amount" json:"originalAmount"`
	OriginalCurrency string                   `db:"original_currency" json:"originalCurrency"`
	ExchangeRate     decimal.Decimal          `db:"exchange_rate" json:"exchangeRate"`
	BaseCurrency     string                   `db:"base_currency" json:"baseCurrency"`
	ReferenceNumber  string                   `db:"reference_number" json:"referenceNumber"`
	PeriodID         id.ID                    `db:"period_id" json:"periodId"`
	Description      string                   `db:"description" json:"description,omitempty"`
	PostedAt         time.Time                `db:"posted_at" json:"postedAt"`
}

// Direction of the source movement.
type Direction string

const (
	StockIn  Direction = "in"
	StockOut Direction = "out"
)

// PostingInput is everything needed to post one source line.
type PostingInput struct {
	Journal       *Journal
	LineNo        int
	Direction     Direction
	Quantity      decimal.Decimal
	UnitCost      decimal.Decimal
	Primary       masterdata.Account
	Corresponding masterdata.Account
	Description   string
}
