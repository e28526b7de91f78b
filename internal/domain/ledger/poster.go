package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/core/types"
)

// CodeUnbalanced is raised when a journal would be committed with debits != credits.
const CodeUnbalanced = "LEDGER_UNBALANCED"

// Repository persists journals and rows. Rows are insert-only.
type Repository interface {
	InsertJournal(ctx context.Context, tc tenant.Context, j *Journal) error
	UpdateJournalTotals(ctx context.Context, tc tenant.Context, j *Journal) error
	InsertRows(ctx context.Context, tc tenant.Context, rows []Row) error
	ListRows(ctx context.Context, tc tenant.Context, sourceID id.ID) ([]Row, error)
}

// Poster emits balanced pairs.
type Poster struct {
	repo Repository
	now  func() time.Time
}

// NewPoster creates a Poster.
func NewPoster(repo Repository) *Poster {
	return &Poster{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// OpenJournal inserts the journal header with zero totals.
func (p *Poster) OpenJournal(ctx context.Context, tc tenant.Context, j *Journal) error {
	if id.IsNil(j.ID) {
		j.ID = id.New()
	}
	j.TenantID = tc.TenantID
	j.TotalDebit = decimal.Zero
	j.TotalCredit = decimal.Zero
	j.PostedBy = tc.ActorID
	if j.PostedAt.IsZero() {
		j.PostedAt = p.now()
	}
	if err := p.repo.InsertJournal(ctx, tc, j); err != nil {
		return fmt.Errorf("insert journal %s: %w", j.ReferenceNumber, err)
	}
	return nil
}

// BuildPair returns the debit and credit rows for one line.
// Stock-in debits the primary account; stock-out debits the corresponding account.
// Both sides carry the same base amount, rounded once.
func BuildPair(in PostingInput) ([2]Row, error) {
	j := in.Journal
	if j == nil {
		return [2]Row{}, apperror.NewInternal(fmt.Errorf("posting line %d without journal", in.LineNo))
	}
	if !in.Quantity.IsPositive() {
		return [2]Row{}, apperror.NewValidation("posted quantity must be positive").WithDetail("line", in.LineNo)
	}
	if in.UnitCost.IsNegative() {
		return [2]Row{}, apperror.NewValidation("posted unit cost must not be negative").WithDetail("line", in.LineNo)
	}
	if in.Primary.ID == in.Corresponding.ID {
		return [2]Row{}, apperror.NewValidation("debit and credit accounts must differ").WithDetail("line", in.LineNo)
	}

	original := types.RoundMoney(in.Quantity.Mul(in.UnitCost))
	base := types.RoundMoney(in.Quantity.Mul(in.UnitCost).Mul(j.ExchangeRate))

	debitAcc, creditAcc := in.Primary, in.Corresponding
	switch in.Direction {
	case StockIn:
	case StockOut:
		debitAcc, creditAcc = in.Corresponding, in.Primary
	default:
		return [2]Row{}, apperror.NewValidation(fmt.Sprintf("unknown direction %q", in.Direction))
	}

	mk := func(side Side) Row {
		acc := debitAcc
		if side == Credit {
			acc = creditAcc
		}
		return Row{
			ID:               id.New(),
			TenantID:         j.TenantID,
			JournalID:        j.ID,
			SourceID:         j.SourceID,
			LineNo:           in.LineNo,
			Side:             side,
			AccountID:        acc.ID,
			AccountCode:      acc.Code,
			AccountNature:    acc.Nature,
			Amount:           base,
			OriginalAmount:   original,
			OriginalCurrency: j.Currency,
			ExchangeRate:     j.ExchangeRate,
			BaseCurrency:     j.BaseCurrency,
			ReferenceNumber:  j.ReferenceNumber,
			PeriodID:         j.PeriodID,
			Description:      in.Description,
			PostedAt:         j.PostedAt,
		}
	}

	return [2]Row{mk(Debit), mk(Credit)}, nil
}

// Post inserts the pair for one line and adds it to the journal totals.
func (p *Poster) Post(ctx context.Context, tc tenant.Context, in PostingInput) ([2]Row, error) {
	pair, err := BuildPair(in)
	if err != nil {
		return pair, err
	}
	if err := p.repo.InsertRows(ctx, tc, pair[:]); err != nil {
		return pair, fmt.Errorf("insert ledger rows for line %d: %w", in.LineNo, err)
	}

	in.Journal.TotalDebit = in.Journal.TotalDebit.Add(pair[0].Amount)
	in.Journal.TotalCredit = in.Journal.TotalCredit.Add(pair[1].Amount)
	return pair, nil
}

// CloseJournal verifies the balance and stores the totals.
func (p *Poster) CloseJournal(ctx context.Context, tc tenant.Context, j *Journal) error {
	if !j.Balanced() {
		return apperror.NewInternal(fmt.Errorf("%s: journal %s debit %s != credit %s",
			CodeUnbalanced, j.ReferenceNumber, j.TotalDebit, j.TotalCredit))
	}
	if err := p.repo.UpdateJournalTotals(ctx, tc, j); err != nil {
		return fmt.Errorf("update journal totals %s: %w", j.ReferenceNumber, err)
	}
	return nil
}

// Rows lists the rows posted for a source document.
func (p *Poster) Rows(ctx context.Context, tc tenant.Context, sourceID id.ID) ([]Row, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	return p.repo.ListRows(ctx, tc, sourceID)
}
