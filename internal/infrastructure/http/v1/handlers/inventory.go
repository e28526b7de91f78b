package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/costing"
	"stockpost/internal/domain/inventory"
	"stockpost/internal/domain/pricehistory"
	"stockpost/internal/infrastructure/http/v1/dto"
)

// PositionReader reads inventory positions.
type PositionReader interface {
	Position(ctx context.Context, tc tenant.Context, key inventory.Key) (*inventory.Position, error)
}

// PriceHistoryReader lists the price trail.
type PriceHistoryReader interface {
	List(ctx context.Context, tc tenant.Context, f pricehistory.Filter) ([]pricehistory.Record, error)
}

// CostLookup answers costing questions.
type CostLookup interface {
	Lookup(ctx context.Context, tc tenant.Context, q costing.Query) (*costing.Result, error)
}

// InventoryHandler serves the read side: positions, price trail and costing.
type InventoryHandler struct {
	BaseHandler
	positions PositionReader
	history   PriceHistoryReader
	costs     CostLookup
}

// NewInventoryHandler creates a new inventory handler.
func NewInventoryHandler(positions PositionReader, history PriceHistoryReader, costs CostLookup) *InventoryHandler {
	return &InventoryHandler{positions: positions, history: history, costs: costs}
}

// Position handles GET /inventory/positions/:productId/:storeId.
// A position that was never moved is reported with zero quantity.
func (h *InventoryHandler) Position(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	productID, ok := h.PathID(c, "productId")
	if !ok {
		return
	}
	storeID, ok := h.PathID(c, "storeId")
	if !ok {
		return
	}

	pos, err := h.positions.Position(c.Request.Context(), tc, inventory.Key{ProductID: productID, StoreID: storeID})
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPosition(pos))
}

// PriceHistory handles GET /price-history.
func (h *InventoryHandler) PriceHistory(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	var q dto.PriceHistoryQuery
	if !h.BindQuery(c, &q) {
		return
	}

	records, err := h.history.List(c.Request.Context(), tc, q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	if records == nil {
		records = []pricehistory.Record{}
	}
	h.OK(c, dto.ListResponse[pricehistory.Record]{Items: records, Limit: q.Limit})
}

// Cost handles GET /costing/products/:productId.
func (h *InventoryHandler) Cost(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	productID, ok := h.PathID(c, "productId")
	if !ok {
		return
	}
	var q dto.CostQuery
	if !h.BindQuery(c, &q) {
		return
	}
	method, err := costing.ParseMethod(q.Method)
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.costs.Lookup(c.Request.Context(), tc, q.ToQuery(productID, method))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}
