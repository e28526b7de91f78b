package adjustment

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/security"
	"stockpost/internal/core/tenant"
	"stockpost/internal/core/types"
	"stockpost/internal/domain/audit"
	"stockpost/internal/domain/costing"
	"stockpost/internal/domain/inventory"
	"stockpost/internal/domain/ledger"
	"stockpost/internal/domain/masterdata"
	"stockpost/internal/domain/pricehistory"
	"stockpost/pkg/logger"
)

var tracer = otel.Tracer("stockpost/adjustment")

// approvalPlan is everything resolved before the transaction opens.
type approvalPlan struct {
	period        *masterdata.Period
	baseCurrency  string
	rate          decimal.Decimal
	primary       masterdata.Account
	corresponding masterdata.Account
	lines         []Line
	prices        map[id.ID]decimal.Decimal
}

// Approve applies a submitted adjustment to stock, cost, price history and the ledger
// in one transaction. Lock timeouts are retried with backoff; anything else rolls back
// and is returned. actorID overrides tc.ActorID when not empty.
func (s *Service) Approve(ctx context.Context, tc tenant.Context, docID id.ID, actorID string) (*Adjustment, error) {
	tc = withActor(tc, actorID)
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "adjustment.Approve", trace.WithAttributes(
		attribute.String("adjustment.id", docID.String()),
		attribute.String("tenant.id", tc.TenantID),
	))
	defer span.End()

	started := time.Now()
	attempts := 0

	var approved *Adjustment
	err := s.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		if attempt > 1 {
			logger.Warn(ctx, "retrying approval after lock timeout",
				"adjustment_id", docID,
				"attempt", attempt)
		}
		doc, err := s.approveOnce(ctx, tc, docID)
		if err != nil {
			return err
		}
		approved = doc
		return nil
	})

	span.SetAttributes(attribute.Int("approval.attempts", attempts))
	if err != nil {
		outcome := apperror.CodeInternal
		if appErr, ok := apperror.AsAppError(err); ok {
			outcome = appErr.Code
		}
		s.metrics.ApprovalCompleted(outcome, attempts, time.Since(started))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		logger.Error(ctx, "stock adjustment approval rolled back",
			"adjustment_id", docID,
			"attempts", attempts,
			"error", err)
		return nil, err
	}

	s.metrics.ApprovalCompleted(string(StatusApproved), attempts, time.Since(started))
	s.metrics.LedgerRowsPosted(2 * len(approved.Lines))
	logger.Info(ctx, "stock adjustment approved",
		"adjustment_id", approved.ID,
		"reference_number", approved.ReferenceNumber,
		"journal_id", approved.JournalID,
		"total_base_amount", approved.TotalBaseAmount,
		"attempts", attempts)
	return approved, nil
}

func (s *Service) approveOnce(ctx context.Context, tc tenant.Context, docID id.ID) (*Adjustment, error) {
	doc, err := s.repo.GetByID(ctx, tc, docID)
	if err != nil {
		return nil, err
	}
	if err := doc.requireStatus(StatusSubmitted, "approve"); err != nil {
		return nil, err
	}

	plan, err := s.plan(ctx, tc, doc)
	if err != nil {
		return nil, err
	}

	var approved *Adjustment
	err = s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		// The header lock makes a concurrent second approval wait here and then fail the status check.
		locked, err := s.repo.GetForUpdate(ctx, tc, docID)
		if err != nil {
			return err
		}
		if err := locked.requireStatus(StatusSubmitted, "approve"); err != nil {
			return err
		}
		locked.Lines = plan.lines

		journal := &ledger.Journal{
			PeriodID:        plan.period.ID,
			SourceModule:    pricehistory.ModuleStockAdjustment,
			SourceID:        locked.ID,
			ReferenceNumber: locked.ReferenceNumber,
			Currency:        locked.Currency,
			ExchangeRate:    plan.rate,
			BaseCurrency:    plan.baseCurrency,
		}
		if err := s.poster.OpenJournal(ctx, tc, journal); err != nil {
			return err
		}

		for _, line := range plan.lines {
			if err := s.applyLine(ctx, tc, locked, journal, plan, line); err != nil {
				return fmt.Errorf("line %d: %w", line.LineNo, err)
			}
		}

		if err := s.poster.CloseJournal(ctx, tc, journal); err != nil {
			return err
		}

		now := s.now()
		if err := locked.MarkApproved(tc.ActorID, now, journal.ID, plan.rate, journal.TotalDebit); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, tc, locked, StatusSubmitted); err != nil {
			return err
		}
		if err := s.outbox.Publish(ctx, tc, newEvent(EventApproved, locked, tc.ActorID, "", now)); err != nil {
			return fmt.Errorf("publish %s: %w", EventApproved, err)
		}
		if err := s.audit.Log(ctx, tc, audit.Entry{
			EntityType: EntityName,
			EntityID:   locked.ID,
			Action:     audit.ActionApprove,
			Changes: map[string]any{
				"status":            []Status{StatusSubmitted, StatusApproved},
				"journal_id":        journal.ID.String(),
				"exchange_rate":     plan.rate.String(),
				"total_base_amount": journal.TotalDebit.String(),
			},
		}); err != nil {
			return fmt.Errorf("audit approval: %w", err)
		}

		approved = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approved, nil
}

// plan resolves master data once per attempt, before any lock is taken.
func (s *Service) plan(ctx context.Context, tc tenant.Context, doc *Adjustment) (*approvalPlan, error) {
	period, err := masterdata.RequireActivePeriod(ctx, s.resolvers.Periods, tc)
	if err != nil {
		return nil, err
	}
	if !period.Contains(doc.AdjustmentDate) {
		return nil, apperror.NewBusinessRule(apperror.CodeDateOutsidePeriod, "Adjustment date is outside the active financial period").
			WithDetail("period", period.Code).
			WithDetail("adjustment_date", doc.AdjustmentDate.Format(time.DateOnly))
	}

	base, err := masterdata.RequireDefaultCurrency(ctx, s.resolvers.Currencies, tc)
	if err != nil {
		return nil, err
	}
	rate, err := masterdata.EffectiveRate(ctx, s.resolvers.Rates, tc, doc.Currency, base.Code, doc.ExchangeRate, doc.AdjustmentDate)
	if err != nil {
		return nil, err
	}
	rate = types.RoundRate(rate)

	primary, corresponding, err := s.accounts(ctx, tc, doc.PrimaryAccountID, doc.CorrespondingAccountID)
	if err != nil {
		return nil, err
	}

	lines, err := s.repo.GetLines(ctx, tc, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	if len(lines) == 0 {
		return nil, apperror.NewEmptyAdjustment(doc.ID.String())
	}
	slices.SortStableFunc(lines, func(a, b Line) int { return cmp.Compare(a.LineNo, b.LineNo) })

	doc.Lines = lines
	doc.RecalculateTotals()
	totalBase, _ := doc.TotalAmount.Mul(rate).Float64()
	if err := s.rule.Check(security.ApprovalFacts{
		Direction:      string(doc.Direction),
		StoreID:        doc.StoreID.String(),
		Reason:         doc.Reason,
		LineCount:      len(lines),
		TotalBase:      totalBase,
		ActorIsCreator: doc.CreatedBy == tc.ActorID,
	}); err != nil {
		return nil, err
	}

	prices := make(map[id.ID]decimal.Decimal, len(lines))
	for _, l := range lines {
		if _, ok := prices[l.ProductID]; ok {
			continue
		}
		price, err := s.resolvers.Products.SellingPrice(ctx, tc, l.ProductID)
		if err != nil {
			return nil, fmt.Errorf("selling price of %s: %w", l.ProductID, err)
		}
		prices[l.ProductID] = price
	}

	return &approvalPlan{
		period:        period,
		baseCurrency:  base.Code,
		rate:          rate,
		primary:       *primary,
		corresponding: *corresponding,
		lines:         lines,
		prices:        prices,
	}, nil
}

// applyLine runs ledger, costing, price history and posting for one line.
func (s *Service) applyLine(ctx context.Context, tc tenant.Context, doc *Adjustment, journal *ledger.Journal, plan *approvalPlan, line Line) error {
	key := inventory.Key{ProductID: line.ProductID, StoreID: doc.StoreID}
	delta := doc.Direction.Signed(line.AdjustedQuantity)

	moved, err := s.ledger.ApplyMovement(ctx, tc, inventory.Movement{Key: key, Delta: delta, UnitCost: line.UnitCost})
	if err != nil {
		return err
	}

	newAvg := types.RoundCost(costing.WeightedAverage(moved.OldQuantity, moved.OldAverageCost, delta, line.UnitCost))
	if !newAvg.Equal(moved.OldAverageCost) {
		if err := s.ledger.SetAverageCost(ctx, tc, key, newAvg); err != nil {
			return err
		}
	}

	storeID, sourceID := doc.StoreID, doc.ID
	price := plan.prices[line.ProductID]
	if _, err := s.recorder.Record(ctx, tc, pricehistory.Change{
		ProductID:    line.ProductID,
		StoreID:      &storeID,
		Module:       pricehistory.ModuleStockAdjustment,
		SourceID:     &sourceID,
		LineNo:       line.LineNo,
		OldCost:      moved.OldAverageCost,
		NewCost:      newAvg,
		OldPrice:     price,
		NewPrice:     price,
		Quantity:     line.AdjustedQuantity,
		Currency:     doc.Currency,
		Reference:    doc.ReferenceNumber,
		Reason:       doc.Reason,
		BaseCurrency: plan.baseCurrency,
		ExchangeRate: plan.rate,
	}); err != nil {
		return fmt.Errorf("record price history: %w", err)
	}

	if _, err := s.poster.Post(ctx, tc, ledger.PostingInput{
		Journal:       journal,
		LineNo:        line.LineNo,
		Direction:     doc.Direction.LedgerDirection(),
		Quantity:      line.AdjustedQuantity,
		UnitCost:      line.UnitCost,
		Primary:       plan.primary,
		Corresponding: plan.corresponding,
		Description:   doc.Reason,
	}); err != nil {
		return err
	}
	return nil
}
