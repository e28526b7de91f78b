package inventory

import (
	"context"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/tenant"
)

// Repository persists positions. Implementations take the querier from ctx
// so every call joins the caller's transaction.
type Repository interface {
	// LockPosition reads the position with an exclusive row lock (SELECT ... FOR UPDATE).
	// Returns nil, nil when the position does not exist.
	LockPosition(ctx context.Context, tc tenant.Context, key Key) (*Position, error)

	// CreatePosition inserts an empty position unless one exists.
	CreatePosition(ctx context.Context, tc tenant.Context, key Key) error

	// IncrementQuantity adds delta in a single conditional UPDATE.
	// Unless allowNegative, the update only applies while the result stays >= 0;
	// applied=false reports that the guard rejected it.
	IncrementQuantity(ctx context.Context, tc tenant.Context, key Key, delta decimal.Decimal, allowNegative bool) (newQty decimal.Decimal, applied bool, err error)

	// SetAverageCost stores a new average cost.
	SetAverageCost(ctx context.Context, tc tenant.Context, key Key, avg decimal.Decimal) error

	// GetPosition reads without locking. Returns nil, nil when absent.
	GetPosition(ctx context.Context, tc tenant.Context, key Key) (*Position, error)
}
