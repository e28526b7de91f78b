package pricehistory

import (
	"context"

	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/costing"
)

// Repository appends and queries records. There is no update or delete.
type Repository interface {
	Insert(ctx context.Context, tc tenant.Context, rec *Record) error
	List(ctx context.Context, tc tenant.Context, f Filter) ([]Record, error)

	costing.HistorySource
}
