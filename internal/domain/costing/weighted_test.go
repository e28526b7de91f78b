package costing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestWeightedAverage(t *testing.T) {
	tests := []struct {
		name                            string
		oldQty, oldAvg, delta, unitCost string
		want                            decimal.Decimal
	}{
		{"stock-in blends", "100", "10", "20", "12", d("1240").Div(d("120"))},
		{"stock-in equal cost", "50", "8", "50", "8", d("8")},
		{"stock-in onto empty position", "0", "0", "5", "7.25", d("7.25")},
		{"stock-out keeps basis", "120", "10.333333", "-30", "11", d("10.333333")},
		{"zero delta keeps basis", "120", "10", "0", "99", d("10")},
		{"stock-in onto short position", "-5", "9", "10", "11", d("11")},
		{"fractional quantities", "2.5", "4", "0.5", "10", d("5")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeightedAverage(d(tt.oldQty), d(tt.oldAvg), d(tt.delta), d(tt.unitCost))
			assert.Truef(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestWeightedAverage_MatchesFormula(t *testing.T) {
	q, a := d("100"), d("10.00")
	in, c := d("20"), d("12.00")

	got := WeightedAverage(q, a, in, c)

	want := a.Mul(q).Add(c.Mul(in)).Div(q.Add(in))
	assert.True(t, want.Equal(got))
	assertDecimal(t, "10.3333", got.Round(4))
}
