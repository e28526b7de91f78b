// Package domain provides types shared by the domain packages.
package domain

// MaxListLimit caps every list query.
const MaxListLimit = 500

// ListFilter contains common options for list operations.
type ListFilter struct {
	// OrderBy specifies sorting (e.g., "adjustment_date", "-created_at")
	OrderBy string

	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{
		Limit:   50,
		OrderBy: "-created_at",
	}
}

// Normalize clamps the limit and offset into the accepted range.
func (f *ListFilter) Normalize() {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
