package costing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
)

func at(day int) time.Time {
	return time.Date(2026, time.March, day, 9, 0, 0, 0, time.UTC)
}

// Deliberately out of order.
var sample = []HistoryPoint{
	{Cost: d("12"), Quantity: d("20"), Reference: "ADJ-2026-000002", Reason: "recount", At: at(5)},
	{Cost: d("10"), Quantity: d("100"), Reference: "ADJ-2026-000001", Reason: "opening", At: at(1)},
	{Cost: d("11"), Quantity: d("30"), Reference: "ADJ-2026-000003", Reason: "recount", At: at(9)},
}

func TestFIFOAndLIFO(t *testing.T) {
	cost, err := FIFO(sample)
	require.NoError(t, err)
	assertDecimal(t, "10", cost)

	cost, err = LIFO(sample)
	require.NoError(t, err)
	assertDecimal(t, "11", cost)
}

func TestAverage_QuantityWeighted(t *testing.T) {
	cost, err := Average(sample)
	require.NoError(t, err)
	// (12*20 + 10*100 + 11*30) / 150
	assert.True(t, d("1570").Div(d("150")).Equal(cost))
}

func TestAverage_FallsBackToSimpleMean(t *testing.T) {
	history := []HistoryPoint{
		{Cost: d("10"), At: at(1)},
		{Cost: d("14"), At: at(2)},
	}
	cost, err := Average(history)
	require.NoError(t, err)
	assertDecimal(t, "12", cost)
}

func TestSpecific(t *testing.T) {
	cost, err := Specific(sample, SpecQuery{Reference: "adj-2026-000002"})
	require.NoError(t, err)
	assertDecimal(t, "12", cost)

	// latest match wins
	cost, err = Specific(sample, SpecQuery{Reason: "recount"})
	require.NoError(t, err)
	assertDecimal(t, "11", cost)

	cost, err = Specific(sample, SpecQuery{Date: time.Date(2026, time.March, 1, 23, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assertDecimal(t, "10", cost)

	_, err = Specific(sample, SpecQuery{Reference: "ADJ-2026-999999"})
	require.Error(t, err)
	assert.True(t, apperror.IsNotFound(err))

	_, err = Specific(sample, SpecQuery{})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

func TestEmptyHistoryIsNotFound(t *testing.T) {
	for _, m := range []Method{MethodFIFO, MethodLIFO, MethodAverage} {
		_, err := Evaluate(m, nil, SpecQuery{})
		assert.Truef(t, apperror.IsNotFound(err), "method %s", m)
	}
	_, err := Evaluate(MethodSpecific, nil, SpecQuery{Reason: "x"})
	assert.True(t, apperror.IsNotFound(err))
}

func TestHistoryInputIsNotReordered(t *testing.T) {
	before := append([]HistoryPoint(nil), sample...)
	_, _ = LIFO(sample)
	assert.Equal(t, before, sample)
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod(" fifo ")
	require.NoError(t, err)
	assert.Equal(t, MethodFIFO, m)

	_, err = ParseMethod("HIFO")
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))
}

type stubSource struct {
	points []HistoryPoint
	got    HistoryWindow
}

func (s *stubSource) CostHistory(_ context.Context, _ tenant.Context, w HistoryWindow) ([]HistoryPoint, error) {
	s.got = w
	return s.points, nil
}

func TestService_Lookup(t *testing.T) {
	src := &stubSource{points: sample}
	svc := NewService(src)
	product := id.New()

	res, err := svc.Lookup(context.Background(), tenant.New("t1", "u1"), Query{
		HistoryWindow: HistoryWindow{ProductID: product},
		Method:        MethodAverage,
	})
	require.NoError(t, err)
	assert.Equal(t, product, src.got.ProductID)
	assert.Equal(t, 3, res.Points)
	assert.True(t, d("1570").Div(d("150")).Equal(res.UnitCost))

	_, err = svc.Lookup(context.Background(), tenant.New("t1", "u1"), Query{Method: MethodFIFO})
	assert.True(t, apperror.HasCode(err, apperror.CodeValidation))

	_, err = svc.Lookup(context.Background(), tenant.Context{}, Query{HistoryWindow: HistoryWindow{ProductID: product}, Method: MethodFIFO})
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}
