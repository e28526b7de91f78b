// Package document_repo provides PostgreSQL implementations for document repositories.
// Every statement filters by tenant_id and runs on the querier carried by ctx.
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/adjustment"
	"stockpost/internal/infrastructure/storage/postgres"
)

const (
	adjustmentsTable     = "doc_stock_adjustments"
	adjustmentLinesTable = "doc_stock_adjustment_lines"

	// uniqueReferenceConstraint guards (tenant_id, reference_number).
	uniqueReferenceConstraint = "doc_stock_adjustments_reference_key"
)

var (
	adjustmentColumns = postgres.ExtractDBColumns[adjustment.Adjustment]()
	lineColumns       = postgres.ExtractDBColumns[adjustment.Line]()

	// Columns a draft edit may change.
	adjustmentEditable = postgres.Without(adjustmentColumns,
		"id", "tenant_id", "version", "created_at", "created_by",
		"status", "submitted_by", "submitted_at", "approved_by", "approved_at",
		"rejected_by", "rejected_at", "rejection_reason", "journal_id")

	// Columns a status transition writes.
	adjustmentStatusColumns = []string{
		"status", "exchange_rate", "total_amount", "total_base_amount",
		"submitted_by", "submitted_at", "approved_by", "approved_at",
		"rejected_by", "rejected_at", "rejection_reason", "journal_id",
		"updated_at", "updated_by", "version",
	}
)

// AdjustmentRepo implements adjustment.Repository.
type AdjustmentRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ adjustment.Repository = (*AdjustmentRepo)(nil)

// NewAdjustmentRepo creates a new adjustment repository.
func NewAdjustmentRepo(txm *postgres.TxManager) *AdjustmentRepo {
	return &AdjustmentRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the header.
func (r *AdjustmentRepo) Create(ctx context.Context, tc tenant.Context, doc *adjustment.Adjustment) error {
	doc.TenantID = tc.TenantID
	data := postgres.PickColumns(postgres.StructToMap(doc), adjustmentColumns)

	sql, args, err := r.builder.Insert(adjustmentsTable).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		if postgres.IsUniqueViolation(err, uniqueReferenceConstraint) {
			return apperror.NewDuplicate(adjustment.EntityName, "reference_number", doc.ReferenceNumber)
		}
		return fmt.Errorf("insert %s: %w", adjustmentsTable, err)
	}
	return nil
}

func (r *AdjustmentRepo) selectQuery(tc tenant.Context, docID id.ID, forUpdate bool) squirrel.SelectBuilder {
	q := r.builder.Select(adjustmentColumns...).
		From(adjustmentsTable).
		Where(squirrel.Eq{"tenant_id": tc.TenantID, "id": docID})
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *AdjustmentRepo) selectOne(ctx context.Context, tc tenant.Context, docID id.ID, forUpdate bool) (*adjustment.Adjustment, error) {
	sql, args, err := r.selectQuery(tc, docID, forUpdate).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var doc adjustment.Adjustment
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound(adjustment.EntityName, docID.String())
		}
		return nil, fmt.Errorf("get %s: %w", adjustmentsTable, err)
	}
	return &doc, nil
}

// GetByID returns the header without lines.
func (r *AdjustmentRepo) GetByID(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error) {
	return r.selectOne(ctx, tc, docID, false)
}

// GetForUpdate returns the header locked until the transaction ends.
func (r *AdjustmentRepo) GetForUpdate(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error) {
	return r.selectOne(ctx, tc, docID, true)
}

// Update stores a draft with optimistic locking on version.
func (r *AdjustmentRepo) Update(ctx context.Context, tc tenant.Context, doc *adjustment.Adjustment) error {
	sql, args, err := r.updateQuery(tc, doc).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		if postgres.IsUniqueViolation(err, uniqueReferenceConstraint) {
			return apperror.NewDuplicate(adjustment.EntityName, "reference_number", doc.ReferenceNumber)
		}
		return fmt.Errorf("update %s: %w", adjustmentsTable, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	cur, err := r.GetByID(ctx, tc, doc.ID)
	if err != nil {
		return err
	}
	if cur.Status != adjustment.StatusDraft {
		return apperror.NewInvalidState(adjustment.EntityName, string(cur.Status), "update")
	}
	return apperror.NewConcurrentModification(adjustment.EntityName, doc.ID.String())
}

// updateQuery matches only a draft still at the version the caller loaded.
func (r *AdjustmentRepo) updateQuery(tc tenant.Context, doc *adjustment.Adjustment) squirrel.UpdateBuilder {
	return r.builder.Update(adjustmentsTable).
		SetMap(postgres.PickColumns(postgres.StructToMap(doc), adjustmentEditable)).
		Set("version", doc.Version).
		Where(squirrel.Eq{
			"tenant_id": tc.TenantID,
			"id":        doc.ID,
			"version":   doc.Version - 1,
			"status":    adjustment.StatusDraft,
		})
}

// UpdateStatus writes the lifecycle columns only while the row is still in status from.
func (r *AdjustmentRepo) UpdateStatus(ctx context.Context, tc tenant.Context, doc *adjustment.Adjustment, from adjustment.Status) error {
	sql, args, err := r.statusQuery(tc, doc, from).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	cur, err := r.GetByID(ctx, tc, doc.ID)
	if err != nil {
		return err
	}
	return apperror.NewInvalidState(adjustment.EntityName, string(cur.Status), "change status of")
}

func (r *AdjustmentRepo) statusQuery(tc tenant.Context, doc *adjustment.Adjustment, from adjustment.Status) squirrel.UpdateBuilder {
	return r.builder.Update(adjustmentsTable).
		SetMap(postgres.PickColumns(postgres.StructToMap(doc), adjustmentStatusColumns)).
		Where(squirrel.Eq{"tenant_id": tc.TenantID, "id": doc.ID, "status": from})
}

// Delete removes a draft; lines go with it through ON DELETE CASCADE.
func (r *AdjustmentRepo) Delete(ctx context.Context, tc tenant.Context, docID id.ID) error {
	sql, args, err := r.builder.Delete(adjustmentsTable).
		Where(squirrel.Eq{"tenant_id": tc.TenantID, "id": docID, "status": adjustment.StatusDraft}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	tag, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", adjustmentsTable, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	cur, err := r.GetByID(ctx, tc, docID)
	if err != nil {
		return err
	}
	return apperror.NewInvalidState(adjustment.EntityName, string(cur.Status), "delete")
}

// GetLines returns the lines ordered by line number.
func (r *AdjustmentRepo) GetLines(ctx context.Context, tc tenant.Context, docID id.ID) ([]adjustment.Line, error) {
	sql, args, err := r.builder.Select(lineColumns...).
		From(adjustmentLinesTable).
		Where(squirrel.Eq{"tenant_id": tc.TenantID, "adjustment_id": docID}).
		OrderBy("line_no").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var lines []adjustment.Line
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &lines, sql, args...); err != nil {
		return nil, fmt.Errorf("select lines: %w", err)
	}
	return lines, nil
}

// ReplaceLines deletes the existing lines and inserts the new set in one round-trip.
func (r *AdjustmentRepo) ReplaceLines(ctx context.Context, tc tenant.Context, docID id.ID, lines []adjustment.Line) error {
	batch := &pgx.Batch{}

	delSQL, delArgs, err := r.builder.Delete(adjustmentLinesTable).
		Where(squirrel.Eq{"tenant_id": tc.TenantID, "adjustment_id": docID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete lines: %w", err)
	}
	batch.Queue(delSQL, delArgs...)

	if len(lines) > 0 {
		ins := r.builder.Insert(adjustmentLinesTable).Columns(lineColumns...)
		for i := range lines {
			line := &lines[i]
			line.TenantID = tc.TenantID
			line.AdjustmentID = docID
			data := postgres.StructToMap(line)
			values := make([]any, 0, len(lineColumns))
			for _, col := range lineColumns {
				values = append(values, data[col])
			}
			ins = ins.Values(values...)
		}
		insSQL, insArgs, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("build insert lines: %w", err)
		}
		batch.Queue(insSQL, insArgs...)
	}

	results := r.txm.GetQuerier(ctx).SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("replace lines: %w", err)
		}
	}
	return nil
}

// List returns headers newest first.
func (r *AdjustmentRepo) List(ctx context.Context, tc tenant.Context, f adjustment.ListFilter) ([]*adjustment.Adjustment, error) {
	q := r.builder.Select(adjustmentColumns...).
		From(adjustmentsTable).
		Where(squirrel.Eq{"tenant_id": tc.TenantID}).
		OrderBy("created_at DESC", "id DESC")

	if f.Status != nil {
		q = q.Where(squirrel.Eq{"status": *f.Status})
	}
	if f.StoreID != nil {
		q = q.Where(squirrel.Eq{"store_id": *f.StoreID})
	}
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var docs []*adjustment.Adjustment
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &docs, sql, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", adjustmentsTable, err)
	}
	return docs, nil
}
