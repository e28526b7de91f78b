package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/costing"
	"stockpost/internal/domain/pricehistory"
	"stockpost/internal/infrastructure/storage/postgres"
)

const priceHistoryTable = "reg_price_history"

var priceHistoryColumns = postgres.ExtractDBColumns[pricehistory.Record]()

// PriceHistoryRepo implements pricehistory.Repository. The table is append-only.
type PriceHistoryRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ pricehistory.Repository = (*PriceHistoryRepo)(nil)

// NewPriceHistoryRepo creates a new price history repository.
func NewPriceHistoryRepo(txm *postgres.TxManager) *PriceHistoryRepo {
	return &PriceHistoryRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert appends a record.
func (r *PriceHistoryRepo) Insert(ctx context.Context, tc tenant.Context, rec *pricehistory.Record) error {
	rec.TenantID = tc.TenantID
	sql, args, err := r.builder.Insert(priceHistoryTable).
		SetMap(postgres.PickColumns(postgres.StructToMap(rec), priceHistoryColumns)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert price history: %w", err)
	}
	return nil
}

// List returns matching records newest first.
func (r *PriceHistoryRepo) List(ctx context.Context, tc tenant.Context, f pricehistory.Filter) ([]pricehistory.Record, error) {
	q := r.builder.Select(priceHistoryColumns...).
		From(priceHistoryTable).
		Where(squirrel.Eq{"tenant_id": tc.TenantID}).
		OrderBy("recorded_at DESC", "id DESC")

	if f.ProductID != nil {
		q = q.Where(squirrel.Eq{"product_id": *f.ProductID})
	}
	if f.StoreID != nil {
		q = q.Where(squirrel.Eq{"store_id": *f.StoreID})
	}
	if f.SourceID != nil {
		q = q.Where(squirrel.Eq{"source_id": *f.SourceID})
	}
	if f.Module != "" {
		q = q.Where(squirrel.Eq{"module": f.Module})
	}
	if !f.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{"recorded_at": f.From})
	}
	if !f.To.IsZero() {
		q = q.Where(squirrel.LtOrEq{"recorded_at": f.To})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var out []pricehistory.Record
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &out, sql, args...); err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	return out, nil
}

// CostHistory returns cost observations of a product, oldest first.
// Columns are aliased to the HistoryPoint field names scany maps by default.
func (r *PriceHistoryRepo) CostHistory(ctx context.Context, tc tenant.Context, w costing.HistoryWindow) ([]costing.HistoryPoint, error) {
	q := r.builder.Select("new_cost AS cost", "quantity", "reference", "reason", "recorded_at AS at").
		From(priceHistoryTable).
		Where(squirrel.Eq{"tenant_id": tc.TenantID, "product_id": w.ProductID}).
		OrderBy("recorded_at", "id")

	if w.StoreID != nil {
		q = q.Where(squirrel.Eq{"store_id": *w.StoreID})
	}
	if !w.From.IsZero() {
		q = q.Where(squirrel.GtOrEq{"recorded_at": w.From})
	}
	if !w.To.IsZero() {
		q = q.Where(squirrel.LtOrEq{"recorded_at": w.To})
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var points []costing.HistoryPoint
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &points, sql, args...); err != nil {
		return nil, fmt.Errorf("select cost history: %w", err)
	}
	return points, nil
}
