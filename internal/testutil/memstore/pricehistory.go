package memstore

import (
	"context"
	"slices"

	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/costing"
	"stockpost/internal/domain/pricehistory"
)

// PriceHistoryRepo implements pricehistory.Repository.
type PriceHistoryRepo struct{ s *Store }

var _ pricehistory.Repository = PriceHistoryRepo{}

// PriceHistory returns the price history repository view.
func (s *Store) PriceHistory() PriceHistoryRepo { return PriceHistoryRepo{s} }

func (r PriceHistoryRepo) Insert(ctx context.Context, tc tenant.Context, rec *pricehistory.Record) error {
	defer r.s.guard(ctx)()
	if r.s.FailPriceHistory != nil {
		if err := r.s.FailPriceHistory(rec); err != nil {
			return err
		}
	}
	r.s.st.history = append(r.s.st.history, *rec)
	return nil
}

func (r PriceHistoryRepo) List(ctx context.Context, tc tenant.Context, f pricehistory.Filter) ([]pricehistory.Record, error) {
	defer r.s.guard(ctx)()
	var out []pricehistory.Record
	for _, rec := range r.s.st.history {
		if rec.TenantID != tc.TenantID {
			continue
		}
		if f.ProductID != nil && rec.ProductID != *f.ProductID {
			continue
		}
		if f.StoreID != nil && (rec.StoreID == nil || *rec.StoreID != *f.StoreID) {
			continue
		}
		if f.SourceID != nil && (rec.SourceID == nil || *rec.SourceID != *f.SourceID) {
			continue
		}
		if f.Module != "" && rec.Module != f.Module {
			continue
		}
		if !f.From.IsZero() && rec.RecordedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && rec.RecordedAt.After(f.To) {
			continue
		}
		out = append(out, rec)
	}
	slices.Reverse(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r PriceHistoryRepo) CostHistory(ctx context.Context, tc tenant.Context, w costing.HistoryWindow) ([]costing.HistoryPoint, error) {
	defer r.s.guard(ctx)()
	var out []costing.HistoryPoint
	for _, rec := range r.s.st.history {
		if rec.TenantID != tc.TenantID || rec.ProductID != w.ProductID {
			continue
		}
		if w.StoreID != nil && (rec.StoreID == nil || *rec.StoreID != *w.StoreID) {
			continue
		}
		if !w.From.IsZero() && rec.RecordedAt.Before(w.From) {
			continue
		}
		if !w.To.IsZero() && rec.RecordedAt.After(w.To) {
			continue
		}
		out = append(out, costing.HistoryPoint{
			Cost:      rec.NewCost,
			Quantity:  rec.Quantity,
			Reference: rec.Reference,
			Reason:    rec.Reason,
			At:        rec.RecordedAt,
		})
	}
	return out, nil
}

// History returns every price history record.
func (s *Store) History() []pricehistory.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.history)
}
