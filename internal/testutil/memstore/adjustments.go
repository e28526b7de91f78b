package memstore

import (
	"cmp"
	"context"
	"slices"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/adjustment"
)

// AdjustmentRepo implements adjustment.Repository.
type AdjustmentRepo struct{ s *Store }

var _ adjustment.Repository = AdjustmentRepo{}

// Adjustments returns the adjustment repository view.
func (s *Store) Adjustments() AdjustmentRepo { return AdjustmentRepo{s} }

func (r AdjustmentRepo) Create(ctx context.Context, tc tenant.Context, doc *adjustment.Adjustment) error {
	defer r.s.guard(ctx)()
	for _, other := range r.s.st.adjustments {
		if other.TenantID == tc.TenantID && other.ReferenceNumber == doc.ReferenceNumber {
			return apperror.NewDuplicate(adjustment.EntityName, "reference_number", doc.ReferenceNumber)
		}
	}
	stored := *doc
	stored.TenantID = tc.TenantID
	stored.Lines = nil
	r.s.st.adjustments[doc.ID] = stored
	return nil
}

func (r AdjustmentRepo) get(tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error) {
	doc, ok := r.s.st.adjustments[docID]
	if !ok || doc.TenantID != tc.TenantID {
		return nil, apperror.NewNotFound(adjustment.EntityName, docID.String())
	}
	return &doc, nil
}

func (r AdjustmentRepo) GetByID(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error) {
	defer r.s.guard(ctx)()
	return r.get(tc, docID)
}

func (r AdjustmentRepo) GetForUpdate(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error) {
	defer r.s.guard(ctx)()
	return r.get(tc, docID)
}

func (r AdjustmentRepo) Update(ctx context.Context, tc tenant.Context, doc *adjustment.Adjustment) error {
	defer r.s.guard(ctx)()
	cur, err := r.get(tc, doc.ID)
	if err != nil {
		return err
	}
	if cur.Status != adjustment.StatusDraft {
		return apperror.NewInvalidState(adjustment.EntityName, string(cur.Status), "update")
	}
	if cur.Version != doc.Version-1 {
		return apperror.NewConcurrentModification(adjustment.EntityName, doc.ID.String())
	}
	stored := *doc
	stored.TenantID = tc.TenantID
	stored.Lines = nil
	r.s.st.adjustments[doc.ID] = stored
	return nil
}

func (r AdjustmentRepo) UpdateStatus(ctx context.Context, tc tenant.Context, doc *adjustment.Adjustment, from adjustment.Status) error {
	defer r.s.guard(ctx)()
	cur, err := r.get(tc, doc.ID)
	if err != nil {
		return err
	}
	if cur.Status != from {
		return apperror.NewInvalidState(adjustment.EntityName, string(cur.Status), "change status of")
	}
	stored := *doc
	stored.TenantID = tc.TenantID
	stored.Lines = nil
	r.s.st.adjustments[doc.ID] = stored
	return nil
}

func (r AdjustmentRepo) Delete(ctx context.Context, tc tenant.Context, docID id.ID) error {
	defer r.s.guard(ctx)()
	cur, err := r.get(tc, docID)
	if err != nil {
		return err
	}
	if cur.Status != adjustment.StatusDraft {
		return apperror.NewInvalidState(adjustment.EntityName, string(cur.Status), "delete")
	}
	delete(r.s.st.adjustments, docID)
	delete(r.s.st.lines, docID)
	return nil
}

func (r AdjustmentRepo) GetLines(ctx context.Context, tc tenant.Context, docID id.ID) ([]adjustment.Line, error) {
	defer r.s.guard(ctx)()
	if _, err := r.get(tc, docID); err != nil {
		return nil, err
	}
	lines := slices.Clone(r.s.st.lines[docID])
	slices.SortFunc(lines, func(a, b adjustment.Line) int { return cmp.Compare(a.LineNo, b.LineNo) })
	return lines, nil
}

func (r AdjustmentRepo) ReplaceLines(ctx context.Context, tc tenant.Context, docID id.ID, lines []adjustment.Line) error {
	defer r.s.guard(ctx)()
	if _, err := r.get(tc, docID); err != nil {
		return err
	}
	r.s.st.lines[docID] = slices.Clone(lines)
	return nil
}

func (r AdjustmentRepo) List(ctx context.Context, tc tenant.Context, f adjustment.ListFilter) ([]*adjustment.Adjustment, error) {
	defer r.s.guard(ctx)()
	var out []*adjustment.Adjustment
	for _, doc := range r.s.st.adjustments {
		if doc.TenantID != tc.TenantID {
			continue
		}
		if f.Status != nil && doc.Status != *f.Status {
			continue
		}
		if f.StoreID != nil && doc.StoreID != *f.StoreID {
			continue
		}
		d := doc
		out = append(out, &d)
	}
	slices.SortFunc(out, func(a, b *adjustment.Adjustment) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if f.Offset >= len(out) {
		return []*adjustment.Adjustment{}, nil
	}
	out = out[f.Offset:]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
