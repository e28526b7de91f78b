package numerator

import (
	"context"
	"time"

	"stockpost/internal/core/tenant"
)

// Generator generates sequential document numbers per tenant.
// Implementations live in the infrastructure layer.
type Generator interface {
	// GetNextNumber generates the next number for the tenant.
	// Pattern: PREFIX-YEAR-XXXXXX (e.g., ADJ-2026-000001)
	GetNextNumber(ctx context.Context, tc tenant.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber sets the counter value (for migration purposes).
	SetNextNumber(ctx context.Context, tc tenant.Context, cfg Config, period time.Time, value int64) error
}
