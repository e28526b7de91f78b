package adjustment

import (
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/id"
	"stockpost/internal/core/outbox"
)

// Outbox event types.
const (
	EventSubmitted = "stock_adjustment.submitted"
	EventApproved  = "stock_adjustment.approved"
	EventRejected  = "stock_adjustment.rejected"
)

// EventPayload is the JSON body of adjustment events.
type EventPayload struct {
	TenantID        string          `json:"tenantId"`
	AdjustmentID    id.ID           `json:"adjustmentId"`
	ReferenceNumber string          `json:"referenceNumber"`
	StoreID         id.ID           `json:"storeId"`
	Direction       Direction       `json:"direction"`
	Status          Status          `json:"status"`
	Currency        string          `json:"currency"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	TotalBaseAmount decimal.Decimal `json:"totalBaseAmount"`
	JournalID       *id.ID          `json:"journalId,omitempty"`
	Actor           string          `json:"actor"`
	Reason          string          `json:"reason,omitempty"`
	OccurredAt      time.Time       `json:"occurredAt"`
}

func newEvent(eventType string, doc *Adjustment, actor, reason string, at time.Time) outbox.Event {
	return outbox.Event{
		AggregateType: EntityName,
		AggregateID:   doc.ID,
		EventType:     eventType,
		Payload: EventPayload{
			TenantID:        doc.TenantID,
			AdjustmentID:    doc.ID,
			ReferenceNumber: doc.ReferenceNumber,
			StoreID:         doc.StoreID,
			Direction:       doc.Direction,
			Status:          doc.Status,
			Currency:        doc.Currency,
			TotalAmount:     doc.TotalAmount,
			TotalBaseAmount: doc.TotalBaseAmount,
			JournalID:       doc.JournalID,
			Actor:           actor,
			Reason:          reason,
			OccurredAt:      at,
		},
	}
}
