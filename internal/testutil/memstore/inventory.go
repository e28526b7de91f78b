package memstore

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/inventory"
)

// InventoryRepo implements inventory.Repository.
type InventoryRepo struct{ s *Store }

var _ inventory.Repository = InventoryRepo{}

// Inventory returns the position repository view.
func (s *Store) Inventory() InventoryRepo { return InventoryRepo{s} }

// SeedPosition sets a position directly.
func (s *Store) SeedPosition(tenantID string, key inventory.Key, qty, avg decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.positions[posKey{tenantID, key}] = inventory.Position{
		TenantID:    tenantID,
		ProductID:   key.ProductID,
		StoreID:     key.StoreID,
		Quantity:    qty,
		AverageCost: avg,
		Version:     1,
		UpdatedAt:   time.Now().UTC(),
	}
}

func (r InventoryRepo) LockPosition(ctx context.Context, tc tenant.Context, key inventory.Key) (*inventory.Position, error) {
	defer r.s.guard(ctx)()
	if r.s.FailLock != nil {
		if err := r.s.FailLock(key); err != nil {
			return nil, err
		}
	}
	pos, ok := r.s.st.positions[posKey{tc.TenantID, key}]
	if !ok {
		return nil, nil
	}
	return &pos, nil
}

func (r InventoryRepo) CreatePosition(ctx context.Context, tc tenant.Context, key inventory.Key) error {
	defer r.s.guard(ctx)()
	pk := posKey{tc.TenantID, key}
	if _, ok := r.s.st.positions[pk]; ok {
		return nil
	}
	r.s.st.positions[pk] = inventory.Position{
		TenantID:    tc.TenantID,
		ProductID:   key.ProductID,
		StoreID:     key.StoreID,
		Quantity:    decimal.Zero,
		AverageCost: decimal.Zero,
		Version:     1,
		UpdatedAt:   time.Now().UTC(),
	}
	return nil
}

func (r InventoryRepo) IncrementQuantity(ctx context.Context, tc tenant.Context, key inventory.Key, delta decimal.Decimal, allowNegative bool) (decimal.Decimal, bool, error) {
	defer r.s.guard(ctx)()
	pk := posKey{tc.TenantID, key}
	pos, ok := r.s.st.positions[pk]
	if !ok {
		return decimal.Zero, false, nil
	}
	next := pos.Quantity.Add(delta)
	if !allowNegative && next.IsNegative() {
		return pos.Quantity, false, nil
	}
	pos.Quantity = next
	pos.Version++
	pos.UpdatedAt = time.Now().UTC()
	r.s.st.positions[pk] = pos
	return next, true, nil
}

func (r InventoryRepo) SetAverageCost(ctx context.Context, tc tenant.Context, key inventory.Key, avg decimal.Decimal) error {
	defer r.s.guard(ctx)()
	pk := posKey{tc.TenantID, key}
	pos := r.s.st.positions[pk]
	pos.AverageCost = avg
	r.s.st.positions[pk] = pos
	return nil
}

func (r InventoryRepo) GetPosition(ctx context.Context, tc tenant.Context, key inventory.Key) (*inventory.Position, error) {
	defer r.s.guard(ctx)()
	pos, ok := r.s.st.positions[posKey{tc.TenantID, key}]
	if !ok {
		return nil, nil
	}
	return &pos, nil
}
