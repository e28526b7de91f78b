// Package register_repo provides PostgreSQL implementations for the posting registers:
// inventory positions, general ledger and price history.
package register_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/inventory"
	"stockpost/internal/infrastructure/storage/postgres"
)

const positionsTable = "reg_inventory_positions"

var positionColumns = postgres.ExtractDBColumns[inventory.Position]()

// PositionRepo implements inventory.Repository.
type PositionRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

var _ inventory.Repository = (*PositionRepo)(nil)

// NewPositionRepo creates a new position repository.
func NewPositionRepo(txm *postgres.TxManager) *PositionRepo {
	return &PositionRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *PositionRepo) selectQuery(tc tenant.Context, key inventory.Key, forUpdate bool) squirrel.SelectBuilder {
	q := r.builder.Select(positionColumns...).
		From(positionsTable).
		Where(keyPredicate(tc, key))
	if forUpdate {
		q = q.Suffix("FOR UPDATE")
	}
	return q
}

func (r *PositionRepo) get(ctx context.Context, tc tenant.Context, key inventory.Key, forUpdate bool) (*inventory.Position, error) {
	sql, args, err := r.selectQuery(tc, key, forUpdate).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var pos inventory.Position
	if err := pgxscan.Get(ctx, r.txm.GetQuerier(ctx), &pos, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get position %s: %w", key, err)
	}
	return &pos, nil
}

// LockPosition reads the position with SELECT ... FOR UPDATE.
// A lock wait beyond lock_timeout fails with 55P03.
func (r *PositionRepo) LockPosition(ctx context.Context, tc tenant.Context, key inventory.Key) (*inventory.Position, error) {
	return r.get(ctx, tc, key, true)
}

// GetPosition reads without locking.
func (r *PositionRepo) GetPosition(ctx context.Context, tc tenant.Context, key inventory.Key) (*inventory.Position, error) {
	return r.get(ctx, tc, key, false)
}

// CreatePosition inserts an empty position; a concurrent insert of the same key is absorbed.
func (r *PositionRepo) CreatePosition(ctx context.Context, tc tenant.Context, key inventory.Key) error {
	_, err := r.txm.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO reg_inventory_positions (tenant_id, product_id, store_id, quantity, average_cost, version, updated_at)
		VALUES ($1, $2, $3, 0, 0, 1, NOW())
		ON CONFLICT (tenant_id, product_id, store_id) DO NOTHING
	`, tc.TenantID, key.ProductID, key.StoreID)
	if err != nil {
		return fmt.Errorf("create position %s: %w", key, err)
	}
	return nil
}

// IncrementQuantity applies delta in one conditional UPDATE. When the non-negative guard
// rejects it, the current quantity is returned with applied=false.
func (r *PositionRepo) IncrementQuantity(ctx context.Context, tc tenant.Context, key inventory.Key, delta decimal.Decimal, allowNegative bool) (decimal.Decimal, bool, error) {
	sql, args, err := r.incrementQuery(tc, key, delta, allowNegative).ToSql()
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("build update: %w", err)
	}

	var newQty decimal.Decimal
	err = r.txm.GetQuerier(ctx).QueryRow(ctx, sql, args...).Scan(&newQty)
	if err == nil {
		return newQty, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, false, fmt.Errorf("increment quantity %s: %w", key, err)
	}

	pos, err := r.get(ctx, tc, key, false)
	if err != nil {
		return decimal.Zero, false, err
	}
	if pos == nil {
		return decimal.Zero, false, nil
	}
	return pos.Quantity, false, nil
}

// incrementQuery adds delta in place. Without allowNegative the WHERE clause
// refuses any result below zero.
func (r *PositionRepo) incrementQuery(tc tenant.Context, key inventory.Key, delta decimal.Decimal, allowNegative bool) squirrel.UpdateBuilder {
	q := r.builder.Update(positionsTable).
		Set("quantity", squirrel.Expr("quantity + ?", delta)).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(keyPredicate(tc, key)).
		Suffix("RETURNING quantity")
	if !allowNegative {
		q = q.Where(squirrel.Expr("quantity + ? >= 0", delta))
	}
	return q
}

func keyPredicate(tc tenant.Context, key inventory.Key) squirrel.Eq {
	return squirrel.Eq{
		"tenant_id":  tc.TenantID,
		"product_id": key.ProductID,
		"store_id":   key.StoreID,
	}
}

// SetAverageCost stores a new average cost.
func (r *PositionRepo) SetAverageCost(ctx context.Context, tc tenant.Context, key inventory.Key, avg decimal.Decimal) error {
	sql, args, err := r.builder.Update(positionsTable).
		Set("average_cost", avg).
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(keyPredicate(tc, key)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	if _, err := r.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("set average cost %s: %w", key, err)
	}
	return nil
}
