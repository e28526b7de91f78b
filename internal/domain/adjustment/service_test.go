package adjustment_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/security"
	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/adjustment"
	"stockpost/internal/domain/inventory"
	"stockpost/internal/domain/ledger"
	"stockpost/internal/domain/masterdata"
	"stockpost/internal/domain/pricehistory"
	"stockpost/internal/testutil/memstore"
)

const tenantID = "acme"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, d(want).Equal(got), append([]any{fmt.Sprintf("want %s, got %s", want, got)}, msgAndArgs...)...)
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
	attempts []int
	rows     int
}

func (m *recordingMetrics) ApprovalCompleted(outcome string, attempts int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
	m.attempts = append(m.attempts, attempts)
}

func (m *recordingMetrics) LedgerRowsPosted(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows += n
}

type fixture struct {
	store     *memstore.Store
	svc       *adjustment.Service
	metrics   *recordingMetrics
	swallowed atomic.Int32

	tc        tenant.Context
	storeID   id.ID
	productA  id.ID
	productB  id.ID
	inventory masterdata.Account
	expense   masterdata.Account
}

type option func(*adjustment.Deps, *pricehistory.RecorderConfig, *inventory.NegativeStockPolicy)

func withRule(expr string) option {
	return func(d *adjustment.Deps, _ *pricehistory.RecorderConfig, _ *inventory.NegativeStockPolicy) {
		rule, err := security.CompileApprovalRule(expr)
		if err != nil {
			panic(err)
		}
		d.Rule = rule
	}
}

func withFailOpen() option {
	return func(_ *adjustment.Deps, c *pricehistory.RecorderConfig, _ *inventory.NegativeStockPolicy) {
		c.Policy = pricehistory.Policy{Mode: pricehistory.FailOpen}
	}
}

func withNegativeStock() option {
	return func(_ *adjustment.Deps, _ *pricehistory.RecorderConfig, p *inventory.NegativeStockPolicy) {
		*p = inventory.NegativeStockAllow
	}
}

func withRetry(maxAttempts int) option {
	return func(d *adjustment.Deps, _ *pricehistory.RecorderConfig, _ *inventory.NegativeStockPolicy) {
		d.Retry = adjustment.RetryPolicy{MaxAttempts: maxAttempts, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	}
}

func newFixture(t *testing.T, opts ...option) *fixture {
	t.Helper()

	store := memstore.New()
	f := &fixture{
		store:     store,
		metrics:   &recordingMetrics{},
		tc:        tenant.New(tenantID, "alice"),
		storeID:   id.New(),
		productA:  id.New(),
		productB:  id.New(),
		inventory: masterdata.Account{ID: id.New(), Code: "1300", Name: "Inventory", Nature: masterdata.NatureAsset},
		expense:   masterdata.Account{ID: id.New(), Code: "5100", Name: "Inventory adjustments", Nature: masterdata.NatureExpense},
	}

	now := time.Now().UTC()
	store.SetPeriod(tenantID, masterdata.Period{
		ID:        id.New(),
		Code:      "FY-CURRENT",
		StartDate: now.AddDate(0, 0, -30),
		EndDate:   now.AddDate(0, 0, 30),
		Status:    masterdata.PeriodOpen,
	})
	store.SetDefaultCurrency(tenantID, "USD")
	store.AddAccount(f.inventory)
	store.AddAccount(f.expense)
	store.SetSellingPrice(f.productA, d("15"))
	store.SetSellingPrice(f.productB, d("8"))

	deps := adjustment.Deps{
		Repo:      store.Adjustments(),
		Poster:    ledger.NewPoster(store.Ledger()),
		Resolvers: store.Resolvers(),
		Numerator: store.Numerator(),
		TxManager: store,
		Outbox:    store.Outbox(),
		Audit:     store.Audit(),
		Metrics:   f.metrics,
		Retry:     adjustment.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond},
	}
	recCfg := pricehistory.RecorderConfig{OnSwallowed: func(error) { f.swallowed.Add(1) }}
	policy := inventory.NegativeStockReject
	for _, opt := range opts {
		opt(&deps, &recCfg, &policy)
	}

	md := store.MasterData()
	deps.Ledger = inventory.NewLedger(store.Inventory(), policy)
	deps.Recorder = pricehistory.NewRecorder(store.PriceHistory(), md, md, store, recCfg)

	f.svc = adjustment.NewService(deps)
	return f
}

func (f *fixture) header(dir adjustment.Direction) adjustment.Header {
	return adjustment.Header{
		StoreID:                f.storeID,
		Direction:              dir,
		Reason:                 "cycle count",
		PrimaryAccountID:       f.inventory.ID,
		CorrespondingAccountID: f.expense.ID,
		Currency:               "USD",
	}
}

func line(product id.ID, qty, cost string) adjustment.LineInput {
	return adjustment.LineInput{ProductID: product, AdjustedQuantity: d(qty), UnitCost: d(cost)}
}

func (f *fixture) submitted(t *testing.T, h adjustment.Header, lines ...adjustment.LineInput) *adjustment.Adjustment {
	t.Helper()
	ctx := context.Background()
	doc, err := f.svc.CreateDraft(ctx, f.tc, h, lines)
	require.NoError(t, err)
	doc, err = f.svc.Submit(ctx, f.tc, doc.ID)
	require.NoError(t, err)
	return doc
}

func (f *fixture) position(t *testing.T, product id.ID) *inventory.Position {
	t.Helper()
	pos, err := inventory.NewLedger(f.store.Inventory(), "").
		Position(context.Background(), f.tc, inventory.Key{ProductID: product, StoreID: f.storeID})
	require.NoError(t, err)
	return pos
}

func (f *fixture) status(t *testing.T, docID id.ID) adjustment.Status {
	t.Helper()
	doc, err := f.svc.Get(context.Background(), f.tc, docID)
	require.NoError(t, err)
	return doc.Status
}

func sumSide(rows []ledger.Row, side ledger.Side) decimal.Decimal {
	total := decimal.Zero
	for _, r := range rows {
		if r.Side == side {
			total = total.Add(r.Amount)
		}
	}
	return total
}

func TestApprove_AddThenDeduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedPosition(tenantID, inventory.Key{ProductID: f.productA, StoreID: f.storeID}, d("100"), d("10"))

	add := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "20", "12"))
	approved, err := f.svc.Approve(ctx, f.tc, add.ID, "")
	require.NoError(t, err)
	assert.Equal(t, adjustment.StatusApproved, approved.Status)
	require.NotNil(t, approved.JournalID)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "alice", *approved.ApprovedBy)

	pos := f.position(t, f.productA)
	assertDecimal(t, "120", pos.Quantity)
	assertDecimal(t, "10.333333", pos.AverageCost)

	rows := f.store.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, ledger.Debit, rows[0].Side)
	assert.Equal(t, f.inventory.ID, rows[0].AccountID)
	assert.Equal(t, ledger.Credit, rows[1].Side)
	assert.Equal(t, f.expense.ID, rows[1].AccountID)
	assertDecimal(t, "240", rows[0].Amount)
	assertDecimal(t, "240", rows[1].Amount)
	assertDecimal(t, "240", approved.TotalBaseAmount)

	history := f.store.History()
	require.Len(t, history, 1)
	assertDecimal(t, "10", history[0].OldCost)
	assertDecimal(t, "10.333333", history[0].NewCost)
	assert.Equal(t, pricehistory.ModuleStockAdjustment, history[0].Module)
	assert.Equal(t, approved.ReferenceNumber, history[0].Reference)

	deduct := f.submitted(t, f.header(adjustment.DirectionDeduct), line(f.productA, "30", "11"))
	_, err = f.svc.Approve(ctx, f.tc, deduct.ID, "")
	require.NoError(t, err)

	pos = f.position(t, f.productA)
	assertDecimal(t, "90", pos.Quantity)
	assertDecimal(t, "10.333333", pos.AverageCost)

	rows = f.store.Rows()
	require.Len(t, rows, 4)
	assert.Equal(t, f.expense.ID, rows[2].AccountID, "stock-out debits the corresponding account")
	assert.Equal(t, ledger.Debit, rows[2].Side)
	assert.Equal(t, f.inventory.ID, rows[3].AccountID)
	assertDecimal(t, "330", rows[2].Amount)
	assertDecimal(t, "570", sumSide(rows, ledger.Debit))
	assertDecimal(t, "570", sumSide(rows, ledger.Credit))

	assert.Len(t, f.store.History(), 1, "a stock-out does not change the cost basis")

	for _, j := range f.store.Journals() {
		assert.True(t, j.Balanced(), "journal %s", j.ReferenceNumber)
	}

	var approvedEvents int
	for _, ev := range f.store.Events() {
		if ev.EventType == adjustment.EventApproved {
			approvedEvents++
		}
	}
	assert.Equal(t, 2, approvedEvents)
	assert.Equal(t, 4, f.metrics.rows)
}

func TestApprove_MultiLineBalanced(t *testing.T) {
	f := newFixture(t)
	doc := f.submitted(t, f.header(adjustment.DirectionAdd),
		line(f.productA, "3.333", "7.77"),
		line(f.productB, "1", "0.005"),
		line(f.productA, "2", "4"),
	)

	approved, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", *approved.ApprovedBy)

	rows := f.store.Rows()
	require.Len(t, rows, 6)
	assert.True(t, sumSide(rows, ledger.Debit).Equal(sumSide(rows, ledger.Credit)))
	for i := 0; i < len(rows); i += 2 {
		assert.Equal(t, rows[i].LineNo, rows[i+1].LineNo)
		assert.True(t, rows[i].Amount.Equal(rows[i+1].Amount))
	}

	posA := f.position(t, f.productA)
	assertDecimal(t, "5.333", posA.Quantity)
	posB := f.position(t, f.productB)
	assertDecimal(t, "1", posB.Quantity)
	assertDecimal(t, "0.005", posB.AverageCost)
}

func TestApprove_SecondApprovalIsInvalidState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "5", "2"))

	_, err := f.svc.Approve(ctx, f.tc, doc.ID, "")
	require.NoError(t, err)
	rowsBefore, historyBefore := len(f.store.Rows()), len(f.store.History())

	_, err = f.svc.Approve(ctx, f.tc, doc.ID, "")
	require.Error(t, err)
	assert.True(t, apperror.IsInvalidState(err))

	assert.Len(t, f.store.Rows(), rowsBefore)
	assert.Len(t, f.store.History(), historyBefore)
	assertDecimal(t, "5", f.position(t, f.productA).Quantity)
}

func TestApprove_ConcurrentSameDocumentPostsOnce(t *testing.T) {
	f := newFixture(t)
	doc := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "5", "2"))

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		invalid   atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
			switch {
			case err == nil:
				succeeded.Add(1)
			case apperror.IsInvalidState(err):
				invalid.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(7), invalid.Load())
	assert.Len(t, f.store.Rows(), 2)
	assertDecimal(t, "5", f.position(t, f.productA).Quantity)
}

func TestApprove_ConcurrentSamePositionLosesNoUpdate(t *testing.T) {
	f := newFixture(t)
	f.store.SeedPosition(tenantID, inventory.Key{ProductID: f.productA, StoreID: f.storeID}, d("100"), d("10"))

	const n = 20
	docs := make([]id.ID, 0, n)
	for i := 0; i < n; i++ {
		dir := adjustment.DirectionAdd
		qty := "2"
		if i%2 == 1 {
			dir = adjustment.DirectionDeduct
			qty = "1"
		}
		docs = append(docs, f.submitted(t, f.header(dir), line(f.productA, qty, "10")).ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, docID := range docs {
		wg.Add(1)
		go func(docID id.ID) {
			defer wg.Done()
			if _, err := f.svc.Approve(context.Background(), f.tc, docID, ""); err != nil {
				errs <- err
			}
		}(docID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("approve: %v", err)
	}

	pos := f.position(t, f.productA)
	assertDecimal(t, "110", pos.Quantity)
	assertDecimal(t, "10", pos.AverageCost)
	assert.Len(t, f.store.Rows(), 2*n)
}

func TestApprove_InsufficientStockRollsBackEveryLine(t *testing.T) {
	f := newFixture(t)
	f.store.SeedPosition(tenantID, inventory.Key{ProductID: f.productA, StoreID: f.storeID}, d("5"), d("10"))
	f.store.SeedPosition(tenantID, inventory.Key{ProductID: f.productB, StoreID: f.storeID}, d("2"), d("3"))

	doc := f.submitted(t, f.header(adjustment.DirectionDeduct),
		line(f.productA, "3", "10"),
		line(f.productB, "10", "3"),
	)

	_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientStock))

	assertDecimal(t, "5", f.position(t, f.productA).Quantity)
	assertDecimal(t, "2", f.position(t, f.productB).Quantity)
	assert.Empty(t, f.store.Rows())
	assert.Empty(t, f.store.Journals())
	assert.Equal(t, adjustment.StatusSubmitted, f.status(t, doc.ID))
	assert.Equal(t, []string{apperror.CodeInsufficientStock}, f.metrics.outcomes)
}

func TestApprove_NegativeStockAllowed(t *testing.T) {
	f := newFixture(t, withNegativeStock())
	doc := f.submitted(t, f.header(adjustment.DirectionDeduct), line(f.productA, "4", "1"))

	_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
	require.NoError(t, err)
	assertDecimal(t, "-4", f.position(t, f.productA).Quantity)
}

func TestApprove_LedgerFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.store.FailLedgerRows = func(rows []ledger.Row) error {
		if rows[0].LineNo == 2 {
			return errors.New("disk full")
		}
		return nil
	}
	doc := f.submitted(t, f.header(adjustment.DirectionAdd),
		line(f.productA, "1", "5"),
		line(f.productB, "1", "5"),
	)

	_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
	require.Error(t, err)

	assert.True(t, f.position(t, f.productA).Quantity.IsZero())
	assert.Empty(t, f.store.Rows())
	assert.Empty(t, f.store.History())
	assert.Equal(t, adjustment.StatusSubmitted, f.status(t, doc.ID))
	assert.Positive(t, f.store.Rollbacks())
}

func TestApprove_PriceHistoryFailurePolicy(t *testing.T) {
	failing := func(*pricehistory.Record) error { return errors.New("history table locked") }

	t.Run("fail closed rolls back", func(t *testing.T) {
		f := newFixture(t)
		f.store.FailPriceHistory = failing
		doc := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "1", "5"))

		_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
		require.Error(t, err)
		assert.Empty(t, f.store.Rows())
		assert.Equal(t, adjustment.StatusSubmitted, f.status(t, doc.ID))
	})

	t.Run("fail open continues", func(t *testing.T) {
		f := newFixture(t, withFailOpen())
		f.store.FailPriceHistory = failing
		doc := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "1", "5"))

		_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
		require.NoError(t, err)
		assert.Len(t, f.store.Rows(), 2)
		assert.Empty(t, f.store.History())
		assert.Equal(t, int32(1), f.swallowed.Load())
		assertDecimal(t, "5", f.position(t, f.productA).AverageCost)
	})
}

func TestApprove_RetriesLockTimeout(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	f.store.FailLock = func(inventory.Key) error {
		if calls.Add(1) <= 2 {
			return apperror.NewConcurrencyTimeout(errors.New("55P03"))
		}
		return nil
	}
	doc := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "1", "5"))

	_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, []int{3}, f.metrics.attempts)
	assert.Len(t, f.store.Rows(), 2)
}

func TestApprove_LockTimeoutSurfacesAfterLastAttempt(t *testing.T) {
	f := newFixture(t, withRetry(2))
	f.store.FailLock = func(inventory.Key) error {
		return apperror.NewConcurrencyTimeout(errors.New("55P03"))
	}
	doc := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "1", "5"))

	_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
	require.Error(t, err)
	assert.True(t, apperror.IsRetryable(err))
	assert.Equal(t, []int{2}, f.metrics.attempts)
	assert.Empty(t, f.store.Rows())
	assert.Equal(t, adjustment.StatusSubmitted, f.status(t, doc.ID))
}

func TestApprove_MasterDataPreconditions(t *testing.T) {
	t.Run("other tenant", func(t *testing.T) {
		f := newFixture(t)
		doc := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "1", "5"))
		_, err := f.svc.Approve(context.Background(), tenant.New("other", "alice"), doc.ID, "")
		assert.True(t, apperror.IsNotFound(err))
	})

	t.Run("no active period", func(t *testing.T) {
		f := newFixture(t)
		doc := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "1", "5"))
		f.store.RemovePeriod(tenantID)

		_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
		assert.True(t, apperror.HasCode(err, apperror.CodeNoActivePeriod))
		assert.Equal(t, adjustment.StatusSubmitted, f.status(t, doc.ID))
	})

	t.Run("no default currency", func(t *testing.T) {
		f := newFixture(t)
		doc := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "1", "5"))
		f.store.RemoveDefaultCurrency(tenantID)

		_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
		assert.True(t, apperror.HasCode(err, apperror.CodeNoDefaultCurrency))
		assert.Empty(t, f.store.Rows())
	})

	t.Run("rate not found", func(t *testing.T) {
		f := newFixture(t)
		h := f.header(adjustment.DirectionAdd)
		h.Currency = "EUR"
		doc := f.submitted(t, h, line(f.productA, "1", "5"))

		_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
		assert.True(t, apperror.HasCode(err, apperror.CodeRateNotFound))
		assert.Empty(t, f.store.Rows())
	})

	t.Run("date outside period", func(t *testing.T) {
		f := newFixture(t)
		h := f.header(adjustment.DirectionAdd)
		h.AdjustmentDate = time.Now().UTC().AddDate(0, -3, 0)
		doc := f.submitted(t, h, line(f.productA, "1", "5"))

		_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
		assert.True(t, apperror.HasCode(err, apperror.CodeDateOutsidePeriod))
	})
}

func TestApprove_ForeignCurrency(t *testing.T) {
	f := newFixture(t)
	f.store.AddRate(tenantID, masterdata.Rate{From: "EUR", To: "USD", Rate: d("1.1"), EffectiveAt: time.Now().Add(-time.Hour)})
	h := f.header(adjustment.DirectionAdd)
	h.Currency = "eur"
	doc := f.submitted(t, h, line(f.productA, "10", "5"))
	assert.Equal(t, "EUR", doc.Currency)

	approved, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
	require.NoError(t, err)
	assertDecimal(t, "1.1", approved.ExchangeRate)
	assertDecimal(t, "55", approved.TotalBaseAmount)

	rows := f.store.Rows()
	require.Len(t, rows, 2)
	assertDecimal(t, "55", rows[0].Amount)
	assertDecimal(t, "50", rows[0].OriginalAmount)
	assert.Equal(t, "EUR", rows[0].OriginalCurrency)
	assert.Equal(t, "USD", rows[0].BaseCurrency)

	history := f.store.History()
	require.Len(t, history, 1)
	assert.Equal(t, "EUR", history[0].Currency)
	assertDecimal(t, "5.5", history[0].EquivalentAmount)
}

func TestApprove_DocumentRateWins(t *testing.T) {
	f := newFixture(t)
	h := f.header(adjustment.DirectionAdd)
	h.Currency = "GBP"
	h.ExchangeRate = d("1.25")
	doc := f.submitted(t, h, line(f.productA, "4", "1"))

	approved, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
	require.NoError(t, err)
	assertDecimal(t, "5", approved.TotalBaseAmount)
}

func TestApprove_ApprovalRule(t *testing.T) {
	f := newFixture(t, withRule("!actor_is_creator"))
	doc := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "1", "5"))

	_, err := f.svc.Approve(context.Background(), f.tc, doc.ID, "")
	assert.True(t, apperror.HasCode(err, apperror.CodeApprovalDenied))
	assert.Empty(t, f.store.Rows())

	_, err = f.svc.Approve(context.Background(), f.tc, doc.ID, "bob")
	require.NoError(t, err)
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.CreateDraft(ctx, f.tc, f.header(adjustment.DirectionAdd), nil)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, f.tc, empty.ID)
	assert.True(t, apperror.HasCode(err, apperror.CodeEmptyAdjustment))

	doc := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "1", "1"))
	require.NotNil(t, doc.SubmittedBy)
	_, err = f.svc.Submit(ctx, f.tc, doc.ID)
	assert.True(t, apperror.IsInvalidState(err))

	events := f.store.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, adjustment.EventSubmitted, events[len(events)-1].EventType)
}

func TestReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "1", "1"))

	_, err := f.svc.Reject(ctx, f.tc, doc.ID, "", "   ")
	assert.True(t, apperror.HasCode(err, apperror.CodeMissingReason))
	assert.Equal(t, adjustment.StatusSubmitted, f.status(t, doc.ID))

	rejected, err := f.svc.Reject(ctx, f.tc, doc.ID, "carol", "  recount needed ")
	require.NoError(t, err)
	assert.Equal(t, adjustment.StatusRejected, rejected.Status)
	assert.Equal(t, "recount needed", *rejected.RejectionReason)
	assert.Equal(t, "carol", *rejected.RejectedBy)
	assert.Empty(t, f.store.Rows())

	_, err = f.svc.Approve(ctx, f.tc, doc.ID, "")
	assert.True(t, apperror.IsInvalidState(err))
	_, err = f.svc.Reject(ctx, f.tc, doc.ID, "", "again")
	assert.True(t, apperror.IsInvalidState(err))

	draft, err := f.svc.CreateDraft(ctx, f.tc, f.header(adjustment.DirectionAdd), nil)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, f.tc, draft.ID, "", "not submitted")
	assert.True(t, apperror.IsInvalidState(err))
}

func TestCreateDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedPosition(tenantID, inventory.Key{ProductID: f.productA, StoreID: f.storeID}, d("7"), d("2"))

	doc, err := f.svc.CreateDraft(ctx, f.tc, f.header(adjustment.DirectionDeduct), []adjustment.LineInput{
		line(f.productA, "2.5", "2"),
		line(f.productB, "1", "3.5"),
	})
	require.NoError(t, err)

	year := doc.AdjustmentDate.Year()
	assert.Equal(t, fmt.Sprintf("ADJ-%d-000001", year), doc.ReferenceNumber)
	assert.Equal(t, adjustment.StatusDraft, doc.Status)
	require.Len(t, doc.Lines, 2)
	assert.Equal(t, 1, doc.Lines[0].LineNo)
	assertDecimal(t, "7", doc.Lines[0].CurrentQuantity)
	assertDecimal(t, "4.5", doc.Lines[0].NewQuantity)
	assertDecimal(t, "0", doc.Lines[1].CurrentQuantity)
	assertDecimal(t, "-1", doc.Lines[1].NewQuantity)
	assertDecimal(t, "8.5", doc.TotalAmount)
	assertDecimal(t, "0", doc.TotalBaseAmount, "rate is resolved at approval")

	next, err := f.svc.CreateDraft(ctx, f.tc, f.header(adjustment.DirectionAdd), nil)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("ADJ-%d-000002", year), next.ReferenceNumber)

	h := f.header(adjustment.DirectionAdd)
	h.ReferenceNumber = doc.ReferenceNumber
	_, err = f.svc.CreateDraft(ctx, f.tc, h, nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeDuplicate))

	got, err := f.svc.Get(ctx, f.tc, doc.ID)
	require.NoError(t, err)
	assert.Len(t, got.Lines, 2)
}

func TestCreateDraft_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*adjustment.Header)
		lines  []adjustment.LineInput
	}{
		{"missing store", func(h *adjustment.Header) { h.StoreID = id.ID{} }, nil},
		{"bad direction", func(h *adjustment.Header) { h.Direction = "sideways" }, nil},
		{"blank reason", func(h *adjustment.Header) { h.Reason = "  " }, nil},
		{"same accounts", func(h *adjustment.Header) { h.CorrespondingAccountID = h.PrimaryAccountID }, nil},
		{"unknown currency", func(h *adjustment.Header) { h.Currency = "ABC" }, nil},
		{"negative rate", func(h *adjustment.Header) { h.ExchangeRate = d("-1") }, nil},
		{"zero quantity", func(*adjustment.Header) {}, []adjustment.LineInput{line(f.productA, "0", "1")}},
		{"negative cost", func(*adjustment.Header) {}, []adjustment.LineInput{line(f.productA, "1", "-1")}},
		{"missing product", func(*adjustment.Header) {}, []adjustment.LineInput{line(id.ID{}, "1", "1")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := f.header(adjustment.DirectionAdd)
			tt.mutate(&h)
			_, err := f.svc.CreateDraft(ctx, f.tc, h, tt.lines)
			require.Error(t, err)
			assert.Equal(t, 400, apperror.GetHTTPStatus(err))
		})
	}

	h := f.header(adjustment.DirectionAdd)
	h.PrimaryAccountID = id.New()
	_, err := f.svc.CreateDraft(ctx, f.tc, h, nil)
	assert.True(t, apperror.IsNotFound(err))

	_, err = f.svc.CreateDraft(ctx, tenant.Context{}, f.header(adjustment.DirectionAdd), nil)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnauthorized))
}

func TestDraftEditing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.CreateDraft(ctx, f.tc, f.header(adjustment.DirectionAdd), []adjustment.LineInput{line(f.productA, "1", "1")})
	require.NoError(t, err)

	doc, err = f.svc.ReplaceDraftLines(ctx, f.tc, doc.ID, []adjustment.LineInput{
		line(f.productA, "2", "3"),
		line(f.productB, "4", "0.5"),
	})
	require.NoError(t, err)
	assertDecimal(t, "8", doc.TotalAmount)
	assert.Equal(t, 2, doc.Version)

	h := f.header(adjustment.DirectionDeduct)
	h.Reason = "damaged"
	h.ExchangeRate = d("1")
	doc, err = f.svc.UpdateDraft(ctx, f.tc, doc.ID, h, []adjustment.LineInput{line(f.productB, "1", "2")})
	require.NoError(t, err)
	assert.Equal(t, adjustment.DirectionDeduct, doc.Direction)
	assert.Equal(t, "damaged", doc.Reason)
	assertDecimal(t, "2", doc.TotalBaseAmount)

	got, err := f.svc.Get(ctx, f.tc, doc.ID)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, f.productB, got.Lines[0].ProductID)

	_, err = f.svc.Submit(ctx, f.tc, doc.ID)
	require.NoError(t, err)

	_, err = f.svc.ReplaceDraftLines(ctx, f.tc, doc.ID, []adjustment.LineInput{line(f.productA, "1", "1")})
	assert.True(t, apperror.IsInvalidState(err))
	_, err = f.svc.UpdateDraft(ctx, f.tc, doc.ID, h, nil)
	assert.True(t, apperror.IsInvalidState(err))
	assert.True(t, apperror.IsInvalidState(f.svc.DeleteDraft(ctx, f.tc, doc.ID)))
}

func TestDeleteDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.CreateDraft(ctx, f.tc, f.header(adjustment.DirectionAdd), []adjustment.LineInput{line(f.productA, "1", "1")})
	require.NoError(t, err)
	require.NoError(t, f.svc.DeleteDraft(ctx, f.tc, doc.ID))

	_, err = f.svc.Get(ctx, f.tc, doc.ID)
	assert.True(t, apperror.IsNotFound(err))
	assert.True(t, apperror.IsNotFound(f.svc.DeleteDraft(ctx, f.tc, doc.ID)))
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	draft, err := f.svc.CreateDraft(ctx, f.tc, f.header(adjustment.DirectionAdd), nil)
	require.NoError(t, err)
	f.submitted(t, f.header(adjustment.DirectionAdd), line(f.productA, "1", "1"))

	all, err := f.svc.List(ctx, f.tc, adjustment.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	status := adjustment.StatusDraft
	drafts, err := f.svc.List(ctx, f.tc, adjustment.ListFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, draft.ID, drafts[0].ID)

	other, err := f.svc.List(ctx, tenant.New("other", "x"), adjustment.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, other)
}
