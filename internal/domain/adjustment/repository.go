package adjustment

import (
	"context"

	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
)

// Repository defines persistence for adjustments. Every method scopes by tc.TenantID
// and joins the transaction carried by ctx.
type Repository interface {
	// Create inserts the header. A duplicate reference number is a Conflict error.
	Create(ctx context.Context, tc tenant.Context, doc *Adjustment) error

	// GetByID returns the header without lines, or NotFound.
	GetByID(ctx context.Context, tc tenant.Context, docID id.ID) (*Adjustment, error)

	// GetForUpdate returns the header locked FOR UPDATE, or NotFound.
	GetForUpdate(ctx context.Context, tc tenant.Context, docID id.ID) (*Adjustment, error)

	// Update stores header fields and totals of a draft.
	// doc.Version is the new version; the row must still hold doc.Version-1.
	Update(ctx context.Context, tc tenant.Context, doc *Adjustment) error

	// UpdateStatus stores the status, stamps and journal link,
	// conditional on the row still being in status from. Otherwise InvalidState.
	UpdateStatus(ctx context.Context, tc tenant.Context, doc *Adjustment, from Status) error

	// Delete removes a draft and its lines. Otherwise InvalidState.
	Delete(ctx context.Context, tc tenant.Context, docID id.ID) error

	// Line operations
	GetLines(ctx context.Context, tc tenant.Context, docID id.ID) ([]Line, error)
	ReplaceLines(ctx context.Context, tc tenant.Context, docID id.ID, lines []Line) error

	// List returns headers matching the filter, newest first.
	List(ctx context.Context, tc tenant.Context, filter ListFilter) ([]*Adjustment, error)
}
