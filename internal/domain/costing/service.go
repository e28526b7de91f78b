package costing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
)

// HistoryWindow bounds the history loaded for a lookup.
type HistoryWindow struct {
	ProductID id.ID
	StoreID   *id.ID
	From      time.Time
	To        time.Time
}

// HistorySource loads recorded cost observations, oldest first.
type HistorySource interface {
	CostHistory(ctx context.Context, tc tenant.Context, w HistoryWindow) ([]HistoryPoint, error)
}

// Query is a cost lookup request.
type Query struct {
	HistoryWindow
	Method Method
	Spec   SpecQuery
}

// Result is a cost lookup answer.
type Result struct {
	ProductID id.ID           `json:"productId"`
	Method    Method          `json:"method"`
	UnitCost  decimal.Decimal `json:"unitCost"`
	Points    int             `json:"points"`
}

// Service answers read-side cost questions over recorded history.
type Service struct {
	source HistorySource
}

// NewService creates a costing lookup service.
func NewService(source HistorySource) *Service {
	return &Service{source: source}
}

// Lookup loads the history window and applies the requested method.
func (s *Service) Lookup(ctx context.Context, tc tenant.Context, q Query) (*Result, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if id.IsNil(q.ProductID) {
		return nil, apperror.NewValidation("product is required").WithDetail("field", "productId")
	}
	if !q.From.IsZero() && !q.To.IsZero() && q.To.Before(q.From) {
		return nil, apperror.NewValidation("window end is before its start")
	}

	history, err := s.source.CostHistory(ctx, tc, q.HistoryWindow)
	if err != nil {
		return nil, err
	}

	cost, err := Evaluate(q.Method, history, q.Spec)
	if err != nil {
		return nil, err
	}

	return &Result{
		ProductID: q.ProductID,
		Method:    q.Method,
		UnitCost:  cost,
		Points:    len(history),
	}, nil
}
