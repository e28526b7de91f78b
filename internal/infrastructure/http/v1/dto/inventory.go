package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/id"
	"stockpost/internal/domain/costing"
	"stockpost/internal/domain/inventory"
	"stockpost/internal/domain/pricehistory"
)

// PositionResponse is the running balance of a product in a store.
type PositionResponse struct {
	ProductID   string          `json:"productId"`
	StoreID     string          `json:"storeId"`
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"averageCost"`
	Value       decimal.Decimal `json:"value"`
	Version     int             `json:"version"`
	UpdatedAt   *time.Time      `json:"updatedAt,omitempty"`
}

// FromPosition maps a position.
func FromPosition(p *inventory.Position) PositionResponse {
	resp := PositionResponse{
		ProductID:   p.ProductID.String(),
		StoreID:     p.StoreID.String(),
		Quantity:    p.Quantity,
		AverageCost: p.AverageCost,
		Value:       p.Quantity.Mul(p.AverageCost).Round(2),
		Version:     p.Version,
	}
	if !p.UpdatedAt.IsZero() {
		at := p.UpdatedAt
		resp.UpdatedAt = &at
	}
	return resp
}

// PriceHistoryQuery filters the price trail.
type PriceHistoryQuery struct {
	ProductID string    `form:"productId" binding:"omitempty,uuid"`
	StoreID   string    `form:"storeId" binding:"omitempty,uuid"`
	SourceID  string    `form:"sourceId" binding:"omitempty,uuid"`
	Module    string    `form:"module" binding:"max=64"`
	From      time.Time `form:"from"`
	To        time.Time `form:"to"`
	Limit     int       `form:"limit" binding:"omitempty,min=1,max=500"`
}

// ToFilter maps the query; ids were validated by binding.
func (q *PriceHistoryQuery) ToFilter() pricehistory.Filter {
	return pricehistory.Filter{
		ProductID: optionalID(q.ProductID),
		StoreID:   optionalID(q.StoreID),
		SourceID:  optionalID(q.SourceID),
		Module:    q.Module,
		From:      q.From,
		To:        q.To,
		Limit:     q.Limit,
	}
}

// CostQuery is a costing lookup for one product.
type CostQuery struct {
	Method    string    `form:"method" binding:"required"`
	StoreID   string    `form:"storeId" binding:"omitempty,uuid"`
	From      time.Time `form:"from"`
	To        time.Time `form:"to"`
	Reference string    `form:"reference" binding:"max=64"`
	Reason    string    `form:"reason" binding:"max=500"`
	Date      time.Time `form:"date" time_format:"2006-01-02" time_utc:"1"`
}

// ToQuery maps the request onto a costing query.
func (q *CostQuery) ToQuery(productID id.ID, method costing.Method) costing.Query {
	return costing.Query{
		HistoryWindow: costing.HistoryWindow{
			ProductID: productID,
			StoreID:   optionalID(q.StoreID),
			From:      q.From,
			To:        q.To,
		},
		Method: method,
		Spec: costing.SpecQuery{
			Reference: q.Reference,
			Reason:    q.Reason,
			Date:      q.Date,
		},
	}
}

func optionalID(s string) *id.ID {
	if s == "" {
		return nil
	}
	v, err := id.Parse(s)
	if err != nil {
		return nil
	}
	return &v
}
