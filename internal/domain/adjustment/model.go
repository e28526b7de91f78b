// Package adjustment provides the StockAdjustment document and its approval workflow.
package adjustment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/entity"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/core/types"
	"stockpost/internal/domain"
	"stockpost/internal/domain/ledger"
	"stockpost/internal/domain/masterdata"
)

// EntityName is used in errors, audit records and events.
const EntityName = "StockAdjustment"

// Status of an adjustment.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Direction of an adjustment. Quantities on lines are always positive magnitudes.
type Direction string

const (
	DirectionAdd    Direction = "add"
	DirectionDeduct Direction = "deduct"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionAdd || d == DirectionDeduct
}

// Signed applies the direction to a magnitude.
func (d Direction) Signed(q decimal.Decimal) decimal.Decimal {
	if d == DirectionDeduct {
		return q.Neg()
	}
	return q
}

// LedgerDirection maps the adjustment direction to the posting direction.
func (d Direction) LedgerDirection() ledger.Direction {
	if d == DirectionDeduct {
		return ledger.StockOut
	}
	return ledger.StockIn
}

// Adjustment is a stock correction for one store.
type Adjustment struct {
	entity.BaseDocument

	ReferenceNumber string    `db:"reference_number" json:"referenceNumber"`
	AdjustmentDate  time.Time `db:"adjustment_date" json:"adjustmentDate"`
	StoreID         id.ID     `db:"store_id" json:"storeId"`
	Direction       Direction `db:"direction" json:"direction"`
	Reason          string    `db:"reason" json:"reason"`
	Description     string    `db:"description" json:"description,omitempty"`

	PrimaryAccountID       id.ID `db:"primary_account_id" json:"primaryAccountId"`
	CorrespondingAccountID id.ID `db:"corresponding_account_id" json:"correspondingAccountId"`

	// ExchangeRate converts Currency into the tenant default currency.
	// Zero means "resolve at approval".
	Currency     string          `db:"currency" json:"currency"`
	ExchangeRate decimal.Decimal `db:"exchange_rate" json:"exchangeRate"`

	Status Status `db:"status" json:"status"`

	// TotalAmount is in document currency, TotalBaseAmount in the tenant default currency.
	TotalAmount     decimal.Decimal `db:"total_amount" json:"totalAmount"`
	TotalBaseAmount decimal.Decimal `db:"total_base_amount" json:"totalBaseAmount"`

	SubmittedBy     *string    `db:"submitted_by" json:"submittedBy,omitempty"`
	SubmittedAt     *time.Time `db:"submitted_at" json:"submittedAt,omitempty"`
	ApprovedBy      *string    `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt      *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	RejectedBy      *string    `db:"rejected_by" json:"rejectedBy,omitempty"`
	RejectedAt      *time.Time `db:"rejected_at" json:"rejectedAt,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejectionReason,omitempty"`
	JournalID       *id.ID     `db:"journal_id" json:"journalId,omitempty"`

	// Table part
	Lines []Line `db:"-" json:"lines"`
}

// Line is one product row of an adjustment.
type Line struct {
	ID           id.ID  `db:"id" json:"id"`
	TenantID     string `db:"tenant_id" json:"-"`
	AdjustmentID id.ID  `db:"adjustment_id" json:"adjustmentId"`
	LineNo       int    `db:"line_no" json:"lineNo"`
	ProductID    id.ID  `db:"product_id" json:"productId"`

	// CurrentQuantity is the position quantity when the line was last edited.
	CurrentQuantity  decimal.Decimal `db:"current_quantity" json:"currentQuantity"`
	AdjustedQuantity decimal.Decimal `db:"adjusted_quantity" json:"adjustedQuantity"`
	NewQuantity      decimal.Decimal `db:"new_quantity" json:"newQuantity"`
	UnitCost         decimal.Decimal `db:"unit_cost" json:"unitCost"`

	BatchNumber *string    `db:"batch_number" json:"batchNumber,omitempty"`
	Serials     []string   `db:"serials" json:"serials,omitempty"`
	ExpiryDate  *time.Time `db:"expiry_date" json:"expiryDate,omitempty"`
}

// Amount is quantity times unit cost in document currency.
func (l Line) Amount() decimal.Decimal {
	return types.RoundMoney(l.AdjustedQuantity.Mul(l.UnitCost))
}

// Header carries the editable header fields.
type Header struct {
	ReferenceNumber        string
	AdjustmentDate         time.Time
	StoreID                id.ID
	Direction              Direction
	Reason                 string
	Description            string
	PrimaryAccountID       id.ID
	CorrespondingAccountID id.ID
	Currency               string
	ExchangeRate           decimal.Decimal
}

// LineInput carries the editable line fields.
type LineInput struct {
	ProductID        id.ID
	AdjustedQuantity decimal.Decimal
	UnitCost         decimal.Decimal
	BatchNumber      *string
	Serials          []string
	ExpiryDate       *time.Time
}

// ListFilter for listing adjustments.
type ListFilter struct {
	domain.ListFilter

	Status  *Status
	StoreID *id.ID
}

// Validate checks and normalizes header fields.
func (h *Header) Validate() error {
	h.ReferenceNumber = strings.TrimSpace(h.ReferenceNumber)
	h.Reason = strings.TrimSpace(h.Reason)

	if id.IsNil(h.StoreID) {
		return apperror.NewValidation("store is required").WithDetail("field", "storeId")
	}
	if !h.Direction.Valid() {
		return apperror.NewValidation("direction must be add or deduct").
			WithDetail("field", "direction").
			WithDetail("value", string(h.Direction))
	}
	if h.Reason == "" {
		return apperror.NewValidation("reason is required").WithDetail("field", "reason")
	}
	if id.IsNil(h.PrimaryAccountID) {
		return apperror.NewValidation("primary account is required").WithDetail("field", "primaryAccountId")
	}
	if id.IsNil(h.CorrespondingAccountID) {
		return apperror.NewValidation("corresponding account is required").WithDetail("field", "correspondingAccountId")
	}
	if h.PrimaryAccountID == h.CorrespondingAccountID {
		return apperror.NewValidation("primary and corresponding accounts must differ").
			WithDetail("field", "correspondingAccountId")
	}

	code, err := masterdata.NormalizeCurrency(h.Currency)
	if err != nil {
		return err
	}
	h.Currency = code

	if h.ExchangeRate.IsNegative() {
		return apperror.NewValidation("exchange rate must be positive").WithDetail("field", "exchangeRate")
	}
	h.ExchangeRate = types.RoundRate(h.ExchangeRate)

	if h.AdjustmentDate.IsZero() {
		h.AdjustmentDate = time.Now().UTC()
	}
	return nil
}

// Validate checks line fields.
func (in LineInput) Validate(lineNo int) error {
	if id.IsNil(in.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "lines").
			WithDetail("lineNo", lineNo)
	}
	if !types.RoundQuantity(in.AdjustedQuantity).IsPositive() {
		return apperror.NewValidation("adjusted quantity must be positive").
			WithDetail("field", "lines").
			WithDetail("lineNo", lineNo)
	}
	if in.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost must not be negative").
			WithDetail("field", "lines").
			WithDetail("lineNo", lineNo)
	}
	return nil
}

// New creates a draft from a validated header.
func New(tc tenant.Context, h Header) *Adjustment {
	a := &Adjustment{
		BaseDocument: entity.NewBaseDocument(tc),
		Status:       StatusDraft,
		Lines:        make([]Line, 0),
	}
	a.applyHeader(h)
	return a
}

func (a *Adjustment) applyHeader(h Header) {
	if h.ReferenceNumber != "" {
		a.ReferenceNumber = h.ReferenceNumber
	}
	a.AdjustmentDate = h.AdjustmentDate
	a.StoreID = h.StoreID
	a.Direction = h.Direction
	a.Reason = h.Reason
	a.Description = h.Description
	a.PrimaryAccountID = h.PrimaryAccountID
	a.CorrespondingAccountID = h.CorrespondingAccountID
	a.Currency = h.Currency
	a.ExchangeRate = h.ExchangeRate
}

// SetLines replaces the table part. current maps product to its position quantity.
// Line numbers follow input order starting at 1.
func (a *Adjustment) SetLines(inputs []LineInput, current map[id.ID]decimal.Decimal) {
	lines := make([]Line, 0, len(inputs))
	for i, in := range inputs {
		cur := types.RoundQuantity(current[in.ProductID])
		qty := types.RoundQuantity(in.AdjustedQuantity)
		lines = append(lines, Line{
			ID:               id.New(),
			TenantID:         a.TenantID,
			AdjustmentID:     a.ID,
			LineNo:           i + 1,
			ProductID:        in.ProductID,
			CurrentQuantity:  cur,
			AdjustedQuantity: qty,
			NewQuantity:      cur.Add(a.Direction.Signed(qty)),
			UnitCost:         types.RoundCost(in.UnitCost),
			BatchNumber:      in.BatchNumber,
			Serials:          in.Serials,
			ExpiryDate:       in.ExpiryDate,
		})
	}
	a.Lines = lines
	a.RecalculateTotals()
}

// RecalculateTotals updates document totals from lines.
func (a *Adjustment) RecalculateTotals() {
	total := decimal.Zero
	for _, l := range a.Lines {
		total = total.Add(l.Amount())
	}
	a.TotalAmount = total
	a.TotalBaseAmount = types.RoundMoney(total.Mul(a.ExchangeRate))
}

// CanModify returns InvalidState unless the adjustment is a draft.
func (a *Adjustment) CanModify(action string) error {
	return a.requireStatus(StatusDraft, action)
}

func (a *Adjustment) requireStatus(want Status, action string) error {
	if a.Status != want {
		return apperror.NewInvalidState(EntityName, string(a.Status), action).
			WithDetail("id", a.ID.String())
	}
	return nil
}

// Submit moves a draft with lines to submitted.
func (a *Adjustment) Submit(actorID string, at time.Time) error {
	if err := a.requireStatus(StatusDraft, "submit"); err != nil {
		return err
	}
	if len(a.Lines) == 0 {
		return apperror.NewEmptyAdjustment(a.ID.String())
	}
	a.Status = StatusSubmitted
	a.SubmittedBy = &actorID
	a.SubmittedAt = &at
	a.stamp(actorID, at)
	return nil
}

// MarkApproved moves a submitted adjustment to approved.
func (a *Adjustment) MarkApproved(actorID string, at time.Time, journalID id.ID, rate, totalBase decimal.Decimal) error {
	if err := a.requireStatus(StatusSubmitted, "approve"); err != nil {
		return err
	}
	a.Status = StatusApproved
	a.ApprovedBy = &actorID
	a.ApprovedAt = &at
	a.JournalID = &journalID
	a.ExchangeRate = rate
	a.TotalBaseAmount = totalBase
	a.stamp(actorID, at)
	return nil
}

// Reject moves a submitted adjustment to rejected. reason must not be blank.
func (a *Adjustment) Reject(actorID, reason string, at time.Time) error {
	if err := a.requireStatus(StatusSubmitted, "reject"); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return apperror.NewMissingReason()
	}
	a.Status = StatusRejected
	a.RejectedBy = &actorID
	a.RejectedAt = &at
	a.RejectionReason = &reason
	a.stamp(actorID, at)
	return nil
}

func (a *Adjustment) stamp(actorID string, at time.Time) {
	a.UpdatedAt = at
	a.UpdatedBy = actorID
	a.Version++
}

// String identifies the adjustment in logs.
func (a *Adjustment) String() string {
	return fmt.Sprintf("%s %s (%s)", EntityName, a.ReferenceNumber, a.ID)
}
