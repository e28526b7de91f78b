// Package costing computes inventory unit costs.
// Everything here is a pure function of its arguments; persistence lives in the callers.
package costing

import (
	"github.com/shopspring/decimal"
)

// WeightedAverage returns the average unit cost after a movement of delta units at unitCost
// onto a position holding oldQty units at oldAvg.
//
// Stock-in blends proportionally to quantity. Stock-out (delta <= 0) never changes the cost basis.
// A zero resulting quantity, or a position that was empty or short before the receipt,
// takes the incoming unit cost.
func WeightedAverage(oldQty, oldAvg, delta, unitCost decimal.Decimal) decimal.Decimal {
	if !delta.IsPositive() {
		return oldAvg
	}
	if !oldQty.IsPositive() {
		return unitCost
	}

	newQty := oldQty.Add(delta)
	if newQty.IsZero() {
		return unitCost
	}

	return oldAvg.Mul(oldQty).Add(unitCost.Mul(delta)).Div(newQty)
}
