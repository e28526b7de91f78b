package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/core/types"
)

// Ledger applies stock movements to positions.
type Ledger struct {
	repo   Repository
	policy NegativeStockPolicy
}

// NewLedger creates a Ledger.
func NewLedger(repo Repository, policy NegativeStockPolicy) *Ledger {
	if policy == "" {
		policy = NegativeStockReject
	}
	return &Ledger{repo: repo, policy: policy}
}

// ApplyMovement locks the position, creating it on first stock-in, and applies the delta.
// Must run inside a transaction: the lock is held until it ends.
func (l *Ledger) ApplyMovement(ctx context.Context, tc tenant.Context, m Movement) (*MovementResult, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	if id.IsNil(m.ProductID) || id.IsNil(m.StoreID) {
		return nil, apperror.NewValidation("movement needs product and store")
	}
	delta := types.RoundQuantity(m.Delta)
	if delta.IsZero() {
		return nil, apperror.NewValidation("movement quantity must not be zero").
			WithDetail("product_id", m.ProductID.String())
	}

	allowNegative := l.policy == NegativeStockAllow

	pos, err := l.repo.LockPosition(ctx, tc, m.Key)
	if err != nil {
		return nil, fmt.Errorf("lock position %s: %w", m.Key, err)
	}

	created := false
	if pos == nil {
		if delta.IsNegative() && !allowNegative {
			return nil, apperror.NewInsufficientStock(m.ProductID.String(), m.StoreID.String(), delta.Neg(), decimal.Zero)
		}
		if err := l.repo.CreatePosition(ctx, tc, m.Key); err != nil {
			return nil, fmt.Errorf("create position %s: %w", m.Key, err)
		}
		// A concurrent creator may have won the insert; either way the row exists now.
		if pos, err = l.repo.LockPosition(ctx, tc, m.Key); err != nil {
			return nil, fmt.Errorf("lock position %s: %w", m.Key, err)
		}
		if pos == nil {
			return nil, apperror.NewInternal(fmt.Errorf("position %s missing after create", m.Key))
		}
		created = true
	}

	newQty, applied, err := l.repo.IncrementQuantity(ctx, tc, m.Key, delta, allowNegative)
	if err != nil {
		return nil, fmt.Errorf("move %s by %s: %w", m.Key, delta, err)
	}
	if !applied {
		return nil, apperror.NewInsufficientStock(m.ProductID.String(), m.StoreID.String(), delta.Neg(), pos.Quantity)
	}

	return &MovementResult{
		OldQuantity:    pos.Quantity,
		NewQuantity:    newQty,
		OldAverageCost: pos.AverageCost,
		Created:        created,
	}, nil
}

// SetAverageCost persists a recomputed average cost rounded to the stored scale.
func (l *Ledger) SetAverageCost(ctx context.Context, tc tenant.Context, key Key, avg decimal.Decimal) error {
	if err := l.repo.SetAverageCost(ctx, tc, key, types.RoundCost(avg)); err != nil {
		return fmt.Errorf("set average cost %s: %w", key, err)
	}
	return nil
}

// Position reads a position; a missing one is reported as an empty position.
func (l *Ledger) Position(ctx context.Context, tc tenant.Context, key Key) (*Position, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	pos, err := l.repo.GetPosition(ctx, tc, key)
	if err != nil {
		return nil, err
	}
	if pos == nil {
		return &Position{
			TenantID:    tc.TenantID,
			ProductID:   key.ProductID,
			StoreID:     key.StoreID,
			Quantity:    decimal.Zero,
			AverageCost: decimal.Zero,
		}, nil
	}
	return pos, nil
}
