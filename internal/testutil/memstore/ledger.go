package memstore

import (
	"context"
	"slices"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/ledger"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct{ s *Store }

var _ ledger.Repository = LedgerRepo{}

// Ledger returns the general ledger repository view.
func (s *Store) Ledger() LedgerRepo { return LedgerRepo{s} }

func (r LedgerRepo) InsertJournal(ctx context.Context, tc tenant.Context, j *ledger.Journal) error {
	defer r.s.guard(ctx)()
	r.s.st.journals[j.ID] = *j
	return nil
}

func (r LedgerRepo) UpdateJournalTotals(ctx context.Context, tc tenant.Context, j *ledger.Journal) error {
	defer r.s.guard(ctx)()
	cur, ok := r.s.st.journals[j.ID]
	if !ok || cur.TenantID != tc.TenantID {
		return apperror.NewNotFound("journal", j.ID.String())
	}
	cur.TotalDebit = j.TotalDebit
	cur.TotalCredit = j.TotalCredit
	r.s.st.journals[j.ID] = cur
	return nil
}

func (r LedgerRepo) InsertRows(ctx context.Context, tc tenant.Context, rows []ledger.Row) error {
	defer r.s.guard(ctx)()
	if r.s.FailLedgerRows != nil {
		if err := r.s.FailLedgerRows(rows); err != nil {
			return err
		}
	}
	r.s.st.rows = append(r.s.st.rows, rows...)
	return nil
}

func (r LedgerRepo) ListRows(ctx context.Context, tc tenant.Context, sourceID id.ID) ([]ledger.Row, error) {
	defer r.s.guard(ctx)()
	var out []ledger.Row
	for _, row := range r.s.st.rows {
		if row.TenantID == tc.TenantID && row.SourceID == sourceID {
			out = append(out, row)
		}
	}
	return out, nil
}

// Rows returns every posted ledger row.
func (s *Store) Rows() []ledger.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.st.rows)
}

// Journals returns every journal.
func (s *Store) Journals() []ledger.Journal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ledger.Journal, 0, len(s.st.journals))
	for _, j := range s.st.journals {
		out = append(out, j)
	}
	return out
}
