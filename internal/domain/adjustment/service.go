package adjustment

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/id"
	"stockpost/internal/core/numerator"
	"stockpost/internal/core/outbox"
	"stockpost/internal/core/security"
	"stockpost/internal/core/tenant"
	"stockpost/internal/core/tx"
	"stockpost/internal/domain/audit"
	"stockpost/internal/domain/inventory"
	"stockpost/internal/domain/ledger"
	"stockpost/internal/domain/masterdata"
	"stockpost/internal/domain/pricehistory"
	"stockpost/pkg/logger"
)

// Metrics receives approval outcomes.
type Metrics interface {
	ApprovalCompleted(outcome string, attempts int, elapsed time.Duration)
	LedgerRowsPosted(n int)
}

type nopMetrics struct{}

func (nopMetrics) ApprovalCompleted(string, int, time.Duration) {}
func (nopMetrics) LedgerRowsPosted(int)                         {}

// Deps are the collaborators of Service.
type Deps struct {
	Repo      Repository
	Ledger    *inventory.Ledger
	Recorder  *pricehistory.Recorder
	Poster    *ledger.Poster
	Resolvers masterdata.Resolvers
	Numerator numerator.Generator
	TxManager tx.Manager
	Outbox    outbox.Publisher

	// Optional
	Audit   audit.Recorder
	Rule    *security.ApprovalRule
	Retry   RetryPolicy
	Metrics Metrics
}

// Service provides business operations for stock adjustments.
type Service struct {
	repo      Repository
	ledger    *inventory.Ledger
	recorder  *pricehistory.Recorder
	poster    *ledger.Poster
	resolvers masterdata.Resolvers
	numerator numerator.Generator
	txManager tx.Manager
	outbox    outbox.Publisher
	audit     audit.Recorder
	rule      *security.ApprovalRule
	retry     RetryPolicy
	metrics   Metrics
	now       func() time.Time
}

// NewService creates a new adjustment service.
func NewService(d Deps) *Service {
	s := &Service{
		repo:      d.Repo,
		ledger:    d.Ledger,
		recorder:  d.Recorder,
		poster:    d.Poster,
		resolvers: d.Resolvers,
		numerator: d.Numerator,
		txManager: d.TxManager,
		outbox:    d.Outbox,
		audit:     d.Audit,
		rule:      d.Rule,
		retry:     d.Retry,
		metrics:   d.Metrics,
		now:       func() time.Time { return time.Now().UTC() },
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.retry.MaxAttempts == 0 {
		s.retry = DefaultRetryPolicy()
	}
	return s
}

// CreateDraft validates and stores a new draft with its lines.
func (s *Service) CreateDraft(ctx context.Context, tc tenant.Context, h Header, lines []LineInput) (*Adjustment, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	if _, _, err := s.accounts(ctx, tc, h.PrimaryAccountID, h.CorrespondingAccountID); err != nil {
		return nil, err
	}

	doc := New(tc, h)

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if doc.ReferenceNumber == "" {
			number, err := s.numerator.GetNextNumber(ctx, tc, numerator.AdjustmentConfig(), numerator.DefaultOptions(), doc.AdjustmentDate)
			if err != nil {
				return fmt.Errorf("generate number: %w", err)
			}
			doc.ReferenceNumber = number
		}

		current, err := s.currentQuantities(ctx, tc, doc.StoreID, lines)
		if err != nil {
			return err
		}
		doc.SetLines(lines, current)

		if err := s.repo.Create(ctx, tc, doc); err != nil {
			return fmt.Errorf("create adjustment: %w", err)
		}
		if err := s.repo.ReplaceLines(ctx, tc, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.audit.Log(ctx, tc, audit.Entry{
			EntityType: EntityName,
			EntityID:   doc.ID,
			Action:     audit.ActionCreate,
			Changes:    map[string]any{"reference_number": doc.ReferenceNumber, "lines": len(doc.Lines)},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock adjustment created",
		"adjustment_id", doc.ID,
		"reference_number", doc.ReferenceNumber,
		"lines", len(doc.Lines))
	return doc, nil
}

// UpdateDraft replaces header fields and lines of a draft.
func (s *Service) UpdateDraft(ctx context.Context, tc tenant.Context, docID id.ID, h Header, lines []LineInput) (*Adjustment, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	if _, _, err := s.accounts(ctx, tc, h.PrimaryAccountID, h.CorrespondingAccountID); err != nil {
		return nil, err
	}

	var doc *Adjustment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, tc, docID)
		if err != nil {
			return err
		}
		if err := doc.CanModify("update"); err != nil {
			return err
		}

		doc.applyHeader(h)
		current, err := s.currentQuantities(ctx, tc, doc.StoreID, lines)
		if err != nil {
			return err
		}
		doc.SetLines(lines, current)
		doc.stamp(tc.ActorID, s.now())

		if err := s.repo.Update(ctx, tc, doc); err != nil {
			return fmt.Errorf("update adjustment: %w", err)
		}
		if err := s.repo.ReplaceLines(ctx, tc, doc.ID, doc.Lines); err != nil {
			return fmt.Errorf("save lines: %w", err)
		}
		return s.audit.Log(ctx, tc, audit.Entry{
			EntityType: EntityName,
			EntityID:   doc.ID,
			Action:     audit.ActionUpdate,
			Changes:    map[string]any{"lines": len(doc.Lines), "version": doc.Version},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock adjustment updated", "adjustment_id", doc.ID, "version", doc.Version)
	return doc, nil
}

// ReplaceDraftLines swaps the whole table part of a draft and recomputes totals.
func (s *Service) ReplaceDraftLines(ctx context.Context, tc tenant.Context, docID id.ID, lines []LineInput) (*Adjustment, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if err := validateLines(lines); err != nil {
		return nil, err
	}

	var doc *Adjustment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		doc, err = s.repo.GetForUpdate(ctx, tc, docID)
		if err != nil {
			return err
		}
		if err := doc.CanModify("replace lines of"); err != nil {
			return err
		}

		current, err := s.currentQuantities(ctx, tc, doc.StoreID, lines)
		if err != nil {
			return err
		}
		doc.SetLines(lines, current)
		doc.stamp(tc.ActorID, s.now())

		if err := s.repo.Update(ctx, tc, doc); err != nil {
			return fmt.Errorf("update totals: %w", err)
		}
		return s.repo.ReplaceLines(ctx, tc, doc.ID, doc.Lines)
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock adjustment lines replaced", "adjustment_id", doc.ID, "lines", len(doc.Lines))
	return doc, nil
}

// Submit sends a draft for approval.
func (s *Service) Submit(ctx context.Context, tc tenant.Context, docID id.ID) (*Adjustment, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	var doc *Adjustment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if doc, err = s.loadForUpdate(ctx, tc, docID); err != nil {
			return err
		}

		now := s.now()
		if err := doc.Submit(tc.ActorID, now); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, tc, doc, StatusDraft); err != nil {
			return err
		}
		if err := s.outbox.Publish(ctx, tc, newEvent(EventSubmitted, doc, tc.ActorID, "", now)); err != nil {
			return fmt.Errorf("publish %s: %w", EventSubmitted, err)
		}
		return s.audit.Log(ctx, tc, audit.Entry{
			EntityType: EntityName,
			EntityID:   doc.ID,
			Action:     audit.ActionSubmit,
			Changes:    map[string]any{"status": []Status{StatusDraft, StatusSubmitted}},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock adjustment submitted", "adjustment_id", doc.ID, "reference_number", doc.ReferenceNumber)
	return doc, nil
}

// Reject closes a submitted adjustment without touching stock or the ledger.
// actorID overrides tc.ActorID when not empty.
func (s *Service) Reject(ctx context.Context, tc tenant.Context, docID id.ID, actorID, reason string) (*Adjustment, error) {
	tc = withActor(tc, actorID)
	if err := tc.Validate(); err != nil {
		return nil, err
	}

	var doc *Adjustment
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		if doc, err = s.repo.GetForUpdate(ctx, tc, docID); err != nil {
			return err
		}

		now := s.now()
		if err := doc.Reject(tc.ActorID, reason, now); err != nil {
			return err
		}
		if err := s.repo.UpdateStatus(ctx, tc, doc, StatusSubmitted); err != nil {
			return err
		}
		if err := s.outbox.Publish(ctx, tc, newEvent(EventRejected, doc, tc.ActorID, *doc.RejectionReason, now)); err != nil {
			return fmt.Errorf("publish %s: %w", EventRejected, err)
		}
		return s.audit.Log(ctx, tc, audit.Entry{
			EntityType: EntityName,
			EntityID:   doc.ID,
			Action:     audit.ActionReject,
			Changes:    map[string]any{"status": []Status{StatusSubmitted, StatusRejected}, "reason": *doc.RejectionReason},
		})
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "stock adjustment rejected", "adjustment_id", doc.ID, "actor", tc.ActorID)
	return doc, nil
}

// DeleteDraft removes a draft and its lines.
func (s *Service) DeleteDraft(ctx context.Context, tc tenant.Context, docID id.ID) error {
	if err := tc.Validate(); err != nil {
		return err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		doc, err := s.repo.GetForUpdate(ctx, tc, docID)
		if err != nil {
			return err
		}
		if err := doc.CanModify("delete"); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tc, docID); err != nil {
			return fmt.Errorf("delete adjustment: %w", err)
		}
		return s.audit.Log(ctx, tc, audit.Entry{
			EntityType: EntityName,
			EntityID:   docID,
			Action:     audit.ActionDelete,
			Changes:    map[string]any{"reference_number": doc.ReferenceNumber},
		})
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "stock adjustment deleted", "adjustment_id", docID)
	return nil
}

// Get returns an adjustment with lines.
func (s *Service) Get(ctx context.Context, tc tenant.Context, docID id.ID) (*Adjustment, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	doc, err := s.repo.GetByID(ctx, tc, docID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, tc, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines
	return doc, nil
}

// List returns headers only.
func (s *Service) List(ctx context.Context, tc tenant.Context, filter ListFilter) ([]*Adjustment, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	filter.Normalize()
	return s.repo.List(ctx, tc, filter)
}

func (s *Service) loadForUpdate(ctx context.Context, tc tenant.Context, docID id.ID) (*Adjustment, error) {
	doc, err := s.repo.GetForUpdate(ctx, tc, docID)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.GetLines(ctx, tc, docID)
	if err != nil {
		return nil, fmt.Errorf("get lines: %w", err)
	}
	doc.Lines = lines
	return doc, nil
}

func (s *Service) accounts(ctx context.Context, tc tenant.Context, primaryID, correspondingID id.ID) (*masterdata.Account, *masterdata.Account, error) {
	primary, err := s.resolvers.Accounts.Account(ctx, tc, primaryID)
	if err != nil {
		return nil, nil, fmt.Errorf("primary account: %w", err)
	}
	corresponding, err := s.resolvers.Accounts.Account(ctx, tc, correspondingID)
	if err != nil {
		return nil, nil, fmt.Errorf("corresponding account: %w", err)
	}
	return primary, corresponding, nil
}

// currentQuantities snapshots the position quantity of every product on the lines.
func (s *Service) currentQuantities(ctx context.Context, tc tenant.Context, storeID id.ID, lines []LineInput) (map[id.ID]decimal.Decimal, error) {
	current := make(map[id.ID]decimal.Decimal, len(lines))
	for _, in := range lines {
		if _, seen := current[in.ProductID]; seen {
			continue
		}
		pos, err := s.ledger.Position(ctx, tc, inventory.Key{ProductID: in.ProductID, StoreID: storeID})
		if err != nil {
			return nil, fmt.Errorf("read position: %w", err)
		}
		current[in.ProductID] = pos.Quantity
	}
	return current, nil
}

func validateLines(lines []LineInput) error {
	for i, in := range lines {
		if err := in.Validate(i + 1); err != nil {
			return err
		}
	}
	return nil
}

func withActor(tc tenant.Context, actorID string) tenant.Context {
	if actorID == "" {
		return tc
	}
	return tc.WithActor(actorID)
}
