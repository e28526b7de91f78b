// Package inventory maintains per (product, store) running quantity and average cost.
// Positions change only through ApplyMovement under a row lock held by the caller's transaction.
package inventory

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
)

// Key identifies a position within a tenant.
type Key struct {
	ProductID id.ID
	StoreID   id.ID
}

func (k Key) String() string {
	return fmt.Sprintf("%s@%s", k.ProductID, k.StoreID)
}

// Position is the running balance of a product in a store.
type Position struct {
	TenantID    string          `db:"tenant_id" json:"-"`
	ProductID   id.ID           `db:"product_id" json:"productId"`
	StoreID     id.ID           `db:"store_id" json:"storeId"`
	Quantity    decimal.Decimal `db:"quantity" json:"quantity"`
	AverageCost decimal.Decimal `db:"average_cost" json:"averageCost"`
	Version     int             `db:"version" json:"version"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// Key returns the position key.
func (p *Position) Key() Key {
	return Key{ProductID: p.ProductID, StoreID: p.StoreID}
}

// Movement is a signed quantity change. Positive for stock-in.
type Movement struct {
	Key
	Delta    decimal.Decimal
	UnitCost decimal.Decimal
}

// MovementResult carries the pre-movement state the costing step needs.
type MovementResult struct {
	OldQuantity    decimal.Decimal
	NewQuantity    decimal.Decimal
	OldAverageCost decimal.Decimal
	Created        bool
}

// NegativeStockPolicy decides what happens when a decrease would take a position below zero.
type NegativeStockPolicy string

const (
	// NegativeStockReject fails the movement with InsufficientStock.
	NegativeStockReject NegativeStockPolicy = "reject"
	// NegativeStockAllow lets quantities go below zero.
	NegativeStockAllow NegativeStockPolicy = "allow"
)

// ParseNegativeStockPolicy reads a configuration value; empty means reject.
func ParseNegativeStockPolicy(s string) (NegativeStockPolicy, error) {
	switch p := NegativeStockPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return NegativeStockReject, nil
	case NegativeStockReject, NegativeStockAllow:
		return p, nil
	default:
		return "", apperror.NewValidation("unknown negative stock policy").WithDetail("value", s)
	}
}
