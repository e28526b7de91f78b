package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/ledger"
	"stockpost/internal/infrastructure/storage/postgres"
)

const (
	journalsTable   = "gl_journals"
	ledgerRowsTable = "gl_ledger_rows"
)

var (
	journalColumns   = postgres.ExtractDBColumns[ledger.Journal]()
	ledgerRowColumns = postgres.ExtractDBColumns[ledger.Row]()
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txm      *postgres.TxManager
	inserter *postgres.BatchInserter
	builder  squirrel.StatementBuilderType
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates a new general ledger repository.
func NewLedgerRepo(txm *postgres.TxManager) *LedgerRepo {
	return &LedgerRepo{
		txm:      txm,
		inserter: postgres.NewBatchInserter(txm),
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// InsertJournal inserts the journal header.
func (r *LedgerRepo) InsertJournal(ctx context.Context, tc tenant.Context, j *ledger.Journal) error {
	j.TenantID = tc.TenantID
	sql, args, err := r.builder.Insert(journalsTable).
		SetMap(postgres.PickColumns(postgres.StructToMap(j), journalColumns)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert journal: %w", err)
	}
	return nil
}

// UpdateJournalTotals stores the closing totals.
func (r *LedgerRepo) UpdateJournalTotals(ctx context.Context, tc tenant.Context, j *ledger.Journal) error {
	sql, args, err := r.builder.Update(journalsTable).
		Set("total_debit", j.TotalDebit).
		Set("total_credit", j.TotalCredit).
		Where(squirrel.Eq{"tenant_id": tc.TenantID, "id": j.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("update journal totals: %w", err)
	}
	return nil
}

// InsertRows copies the rows in. Requires the caller's transaction.
func (r *LedgerRepo) InsertRows(ctx context.Context, tc tenant.Context, rows []ledger.Row) error {
	data := make([][]any, 0, len(rows))
	for i := range rows {
		rows[i].TenantID = tc.TenantID
		m := postgres.StructToMap(&rows[i])
		values := make([]any, 0, len(ledgerRowColumns))
		for _, col := range ledgerRowColumns {
			values = append(values, m[col])
		}
		data = append(data, values)
	}

	if _, err := r.inserter.CopyFromSlice(ctx, ledgerRowsTable, ledgerRowColumns, data); err != nil {
		return fmt.Errorf("copy ledger rows: %w", err)
	}
	return nil
}

// ListRows returns the rows of a source document in posting order.
func (r *LedgerRepo) ListRows(ctx context.Context, tc tenant.Context, sourceID id.ID) ([]ledger.Row, error) {
	sql, args, err := r.builder.Select(ledgerRowColumns...).
		From(ledgerRowsTable).
		Where(squirrel.Eq{"tenant_id": tc.TenantID, "source_id": sourceID}).
		OrderBy("line_no", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []ledger.Row
	if err := pgxscan.Select(ctx, r.txm.GetQuerier(ctx), &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select ledger rows: %w", err)
	}
	return rows, nil
}
