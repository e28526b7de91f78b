package costing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stockpost/internal/core/apperror"
)

// Method selects how a unit cost is derived from recorded history.
type Method string

const (
	MethodFIFO     Method = "FIFO"
	MethodLIFO     Method = "LIFO"
	MethodAverage  Method = "AVG"
	MethodSpecific Method = "SPEC"
)

// ParseMethod accepts the method name case-insensitively.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodFIFO, MethodLIFO, MethodAverage, MethodSpecific:
		return m, nil
	}
	return "", apperror.NewValidation("unknown costing method").
		WithDetail("method", s).
		WithDetail("allowed", []Method{MethodFIFO, MethodLIFO, MethodAverage, MethodSpecific})
}

// HistoryPoint is one recorded cost observation.
type HistoryPoint struct {
	Cost      decimal.Decimal
	Quantity  decimal.Decimal
	Reference string
	Reason    string
	At        time.Time
}

// SpecQuery selects a point for MethodSpecific. Empty fields are ignored; at least one must be set.
type SpecQuery struct {
	Reference string
	Reason    string
	Date      time.Time
}

func (q SpecQuery) empty() bool {
	return q.Reference == "" && q.Reason == "" && q.Date.IsZero()
}

func (q SpecQuery) matches(p HistoryPoint) bool {
	if q.Reference != "" && !strings.EqualFold(q.Reference, p.Reference) {
		return false
	}
	if q.Reason != "" && !strings.EqualFold(q.Reason, p.Reason) {
		return false
	}
	if !q.Date.IsZero() && !sameDay(q.Date, p.At) {
		return false
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// chronological returns a copy ordered by time; equal timestamps keep their input order.
func chronological(history []HistoryPoint) []HistoryPoint {
	sorted := make([]HistoryPoint, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].At.Before(sorted[j].At)
	})
	return sorted
}

func emptyHistory() *apperror.AppError {
	return apperror.NewNotFound("cost history", nil)
}

// FIFO returns the cost of the earliest point.
func FIFO(history []HistoryPoint) (decimal.Decimal, error) {
	if len(history) == 0 {
		return decimal.Zero, emptyHistory()
	}
	return chronological(history)[0].Cost, nil
}

// LIFO returns the cost of the latest point.
func LIFO(history []HistoryPoint) (decimal.Decimal, error) {
	if len(history) == 0 {
		return decimal.Zero, emptyHistory()
	}
	sorted := chronological(history)
	return sorted[len(sorted)-1].Cost, nil
}

// Average returns the quantity-weighted mean cost.
// Points without a positive quantity do not carry weight; when no point has one,
// the simple arithmetic mean of all costs is returned.
func Average(history []HistoryPoint) (decimal.Decimal, error) {
	if len(history) == 0 {
		return decimal.Zero, emptyHistory()
	}

	weighted, totalQty, sum := decimal.Zero, decimal.Zero, decimal.Zero
	for _, p := range history {
		sum = sum.Add(p.Cost)
		if p.Quantity.IsPositive() {
			weighted = weighted.Add(p.Cost.Mul(p.Quantity))
			totalQty = totalQty.Add(p.Quantity)
		}
	}

	if totalQty.IsZero() {
		return sum.Div(decimal.NewFromInt(int64(len(history)))), nil
	}
	return weighted.Div(totalQty), nil
}

// Specific returns the cost of the latest point matching q.
func Specific(history []HistoryPoint, q SpecQuery) (decimal.Decimal, error) {
	if q.empty() {
		return decimal.Zero, apperror.NewValidation("specific cost lookup needs a reference, reason or date")
	}

	sorted := chronological(history)
	for i := len(sorted) - 1; i >= 0; i-- {
		if q.matches(sorted[i]) {
			return sorted[i].Cost, nil
		}
	}

	return decimal.Zero, apperror.NewNotFound("cost history", specKey(q))
}

func specKey(q SpecQuery) string {
	var parts []string
	if q.Reference != "" {
		parts = append(parts, "reference="+q.Reference)
	}
	if q.Reason != "" {
		parts = append(parts, "reason="+q.Reason)
	}
	if !q.Date.IsZero() {
		parts = append(parts, "date="+q.Date.UTC().Format(time.DateOnly))
	}
	return strings.Join(parts, ",")
}

// Evaluate dispatches to the function for method.
func Evaluate(method Method, history []HistoryPoint, q SpecQuery) (decimal.Decimal, error) {
	switch method {
	case MethodFIFO:
		return FIFO(history)
	case MethodLIFO:
		return LIFO(history)
	case MethodAverage:
		return Average(history)
	case MethodSpecific:
		return Specific(history, q)
	default:
		return decimal.Zero, apperror.NewValidation(fmt.Sprintf("unknown costing method %q", method))
	}
}
