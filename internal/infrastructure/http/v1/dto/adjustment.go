package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/id"
	"stockpost/internal/domain"
	"stockpost/internal/domain/adjustment"
)

// --- Request DTOs ---

// AdjustmentRequest creates or replaces a draft.
type AdjustmentRequest struct {
	ReferenceNumber        string          `json:"referenceNumber" binding:"omitempty,max=64"`
	AdjustmentDate         *time.Time      `json:"adjustmentDate"`
	StoreID                id.ID           `json:"storeId" binding:"required"`
	Direction              string          `json:"direction" binding:"required,oneof=add deduct"`
	Reason                 string          `json:"reason" binding:"required,max=500"`
	Description            string          `json:"description" binding:"max=2000"`
	PrimaryAccountID       id.ID           `json:"primaryAccountId" binding:"required"`
	CorrespondingAccountID id.ID           `json:"correspondingAccountId" binding:"required"`
	Currency               string          `json:"currency" binding:"required,iso4217"`
	ExchangeRate           decimal.Decimal `json:"exchangeRate" binding:"decimal_gte0"`
	Lines                  []LineRequest   `json:"lines" binding:"max=1000,dive"`
}

// LineRequest is one product row.
type LineRequest struct {
	ProductID        id.ID           `json:"productId" binding:"required"`
	AdjustedQuantity decimal.Decimal `json:"adjustedQuantity" binding:"decimal_gt0"`
	UnitCost         decimal.Decimal `json:"unitCost" binding:"decimal_gte0"`
	BatchNumber      *string         `json:"batchNumber" binding:"omitempty,max=64"`
	Serials          []string        `json:"serials" binding:"omitempty,dive,max=128"`
	ExpiryDate       *time.Time      `json:"expiryDate"`
}

// ReplaceLinesRequest swaps the table part of a draft.
type ReplaceLinesRequest struct {
	Lines []LineRequest `json:"lines" binding:"max=1000,dive"`
}

// RejectRequest carries the mandatory rejection reason.
type RejectRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// ListAdjustmentsQuery filters the list endpoint.
type ListAdjustmentsQuery struct {
	Status  string `form:"status" binding:"omitempty,oneof=draft submitted approved rejected"`
	StoreID string `form:"storeId" binding:"omitempty,uuid"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=500"`
	Offset  int    `form:"offset" binding:"omitempty,min=0"`
}

// ToHeader maps the request onto the domain header.
func (r *AdjustmentRequest) ToHeader() adjustment.Header {
	h := adjustment.Header{
		ReferenceNumber:        r.ReferenceNumber,
		StoreID:                r.StoreID,
		Direction:              adjustment.Direction(r.Direction),
		Reason:                 r.Reason,
		Description:            r.Description,
		PrimaryAccountID:       r.PrimaryAccountID,
		CorrespondingAccountID: r.CorrespondingAccountID,
		Currency:               r.Currency,
		ExchangeRate:           r.ExchangeRate,
	}
	if r.AdjustmentDate != nil {
		h.AdjustmentDate = r.AdjustmentDate.UTC()
	}
	return h
}

// ToLineInputs maps request lines onto domain inputs.
func ToLineInputs(lines []LineRequest) []adjustment.LineInput {
	out := make([]adjustment.LineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, adjustment.LineInput{
			ProductID:        l.ProductID,
			AdjustedQuantity: l.AdjustedQuantity,
			UnitCost:         l.UnitCost,
			BatchNumber:      l.BatchNumber,
			Serials:          l.Serials,
			ExpiryDate:       l.ExpiryDate,
		})
	}
	return out
}

// ToFilter maps the query onto the domain filter.
func (q *ListAdjustmentsQuery) ToFilter() adjustment.ListFilter {
	f := adjustment.ListFilter{ListFilter: domain.DefaultListFilter()}
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset
	if q.Status != "" {
		s := adjustment.Status(q.Status)
		f.Status = &s
	}
	if q.StoreID != "" {
		if storeID, err := id.Parse(q.StoreID); err == nil {
			f.StoreID = &storeID
		}
	}
	return f
}

// --- Response DTOs ---

// AdjustmentResponse is the API view of an adjustment.
type AdjustmentResponse struct {
	ID                     string          `json:"id"`
	Version                int             `json:"version"`
	ReferenceNumber        string          `json:"referenceNumber"`
	AdjustmentDate         time.Time       `json:"adjustmentDate"`
	StoreID                string          `json:"storeId"`
	Direction              string          `json:"direction"`
	Reason                 string          `json:"reason"`
	Description            string          `json:"description,omitempty"`
	PrimaryAccountID       string          `json:"primaryAccountId"`
	CorrespondingAccountID string          `json:"correspondingAccountId"`
	Currency               string          `json:"currency"`
	ExchangeRate           decimal.Decimal `json:"exchangeRate"`
	Status                 string          `json:"status"`
	TotalAmount            decimal.Decimal `json:"totalAmount"`
	TotalBaseAmount        decimal.Decimal `json:"totalBaseAmount"`
	SubmittedBy            *string         `json:"submittedBy,omitempty"`
	SubmittedAt            *time.Time      `json:"submittedAt,omitempty"`
	ApprovedBy             *string         `json:"approvedBy,omitempty"`
	ApprovedAt             *time.Time      `json:"approvedAt,omitempty"`
	RejectedBy             *string         `json:"rejectedBy,omitempty"`
	RejectedAt             *time.Time      `json:"rejectedAt,omitempty"`
	RejectionReason        *string         `json:"rejectionReason,omitempty"`
	JournalID              *string         `json:"journalId,omitempty"`
	CreatedBy              string          `json:"createdBy,omitempty"`
	CreatedAt              time.Time       `json:"createdAt"`
	UpdatedAt              time.Time       `json:"updatedAt"`
	Lines                  []LineResponse  `json:"lines,omitempty"`
}

// LineResponse is the API view of a line.
type LineResponse struct {
	LineNo           int             `json:"lineNo"`
	ProductID        string          `json:"productId"`
	CurrentQuantity  decimal.Decimal `json:"currentQuantity"`
	AdjustedQuantity decimal.Decimal `json:"adjustedQuantity"`
	NewQuantity      decimal.Decimal `json:"newQuantity"`
	UnitCost         decimal.Decimal `json:"unitCost"`
	Amount           decimal.Decimal `json:"amount"`
	BatchNumber      *string         `json:"batchNumber,omitempty"`
	Serials          []string        `json:"serials,omitempty"`
	ExpiryDate       *time.Time      `json:"expiryDate,omitempty"`
}

// FromAdjustment builds the response; lines are included when loaded.
func FromAdjustment(doc *adjustment.Adjustment) AdjustmentResponse {
	resp := AdjustmentResponse{
		ID:                     doc.ID.String(),
		Version:                doc.Version,
		ReferenceNumber:        doc.ReferenceNumber,
		AdjustmentDate:         doc.AdjustmentDate,
		StoreID:                doc.StoreID.String(),
		Direction:              string(doc.Direction),
		Reason:                 doc.Reason,
		Description:            doc.Description,
		PrimaryAccountID:       doc.PrimaryAccountID.String(),
		CorrespondingAccountID: doc.CorrespondingAccountID.String(),
		Currency:               doc.Currency,
		ExchangeRate:           doc.ExchangeRate,
		Status:                 string(doc.Status),
		TotalAmount:            doc.TotalAmount,
		TotalBaseAmount:        doc.TotalBaseAmount,
		SubmittedBy:            doc.SubmittedBy,
		SubmittedAt:            doc.SubmittedAt,
		ApprovedBy:             doc.ApprovedBy,
		ApprovedAt:             doc.ApprovedAt,
		RejectedBy:             doc.RejectedBy,
		RejectedAt:             doc.RejectedAt,
		RejectionReason:        doc.RejectionReason,
		CreatedBy:              doc.CreatedBy,
		CreatedAt:              doc.CreatedAt,
		UpdatedAt:              doc.UpdatedAt,
	}
	if doc.JournalID != nil {
		j := doc.JournalID.String()
		resp.JournalID = &j
	}
	for _, l := range doc.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			LineNo:           l.LineNo,
			ProductID:        l.ProductID.String(),
			CurrentQuantity:  l.CurrentQuantity,
			AdjustedQuantity: l.AdjustedQuantity,
			NewQuantity:      l.NewQuantity,
			UnitCost:         l.UnitCost,
			Amount:           l.Amount(),
			BatchNumber:      l.BatchNumber,
			Serials:          l.Serials,
			ExpiryDate:       l.ExpiryDate,
		})
	}
	return resp
}

// FromAdjustments builds list items without lines.
func FromAdjustments(docs []*adjustment.Adjustment) []AdjustmentResponse {
	out := make([]AdjustmentResponse, 0, len(docs))
	for _, doc := range docs {
		item := FromAdjustment(doc)
		item.Lines = nil
		out = append(out, item)
	}
	return out
}
