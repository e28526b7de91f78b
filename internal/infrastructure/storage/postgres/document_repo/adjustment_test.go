package document_repo

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/core/types"
	"stockpost/internal/domain/adjustment"
)

func testDoc(tc tenant.Context) *adjustment.Adjustment {
	doc := adjustment.New(tc, adjustment.Header{
		StoreID:                id.New(),
		Direction:              adjustment.DirectionAdd,
		Reason:                 "count",
		PrimaryAccountID:       id.New(),
		CorrespondingAccountID: id.New(),
		Currency:               "USD",
		ExchangeRate:           decimal.NewFromInt(1),
	})
	doc.Version = 3
	return doc
}

func setClause(t *testing.T, sql string) string {
	t.Helper()
	set, _, ok := strings.Cut(sql, " WHERE ")
	require.True(t, ok, sql)
	return set
}

func TestSelectOne_SQL(t *testing.T) {
	repo := NewAdjustmentRepo(nil)
	docID := id.New()

	sql, args, err := repo.selectQuery(tenant.New("acme", "alice"), docID, true).ToSql()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(sql, "FROM doc_stock_adjustments WHERE id = $1 AND tenant_id = $2 FOR UPDATE"), sql)
	assert.Equal(t, []any{docID.String(), "acme"}, args)

	sql, _, err = repo.selectQuery(tenant.New("acme", "alice"), docID, false).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, "FOR UPDATE")
}

func TestUpdate_SQL_GuardsVersionAndDraft(t *testing.T) {
	repo := NewAdjustmentRepo(nil)
	tc := tenant.New("acme", "alice")
	doc := testDoc(tc)

	sql, args, err := repo.updateQuery(tc, doc).ToSql()
	require.NoError(t, err)

	n := len(args)
	wantWhere := fmt.Sprintf(" WHERE id = $%d AND status = $%d AND tenant_id = $%d AND version = $%d", n-3, n-2, n-1, n)
	assert.True(t, strings.HasSuffix(sql, wantWhere), sql)
	assert.Equal(t, []any{doc.ID.String(), adjustment.StatusDraft, "acme", 2}, args[n-4:])

	set := setClause(t, sql)
	assert.Contains(t, set, "version = $")
	assert.Contains(t, args[:n-4], 3)
	for _, col := range []string{"status", "approved_by", "journal_id", "tenant_id", "created_by"} {
		assert.NotContains(t, set, " "+col+" = ", "draft edits must not write %s", col)
	}
}

func TestUpdateStatus_SQL_GuardsSourceStatus(t *testing.T) {
	repo := NewAdjustmentRepo(nil)
	tc := tenant.New("acme", "alice")
	doc := testDoc(tc)
	doc.Status = adjustment.StatusApproved

	sql, args, err := repo.statusQuery(tc, doc, adjustment.StatusSubmitted).ToSql()
	require.NoError(t, err)

	n := len(args)
	require.Equal(t, len(adjustmentStatusColumns)+3, n)
	wantWhere := fmt.Sprintf(" WHERE id = $%d AND status = $%d AND tenant_id = $%d", n-2, n-1, n)
	assert.True(t, strings.HasSuffix(sql, wantWhere), sql)
	assert.Equal(t, []any{doc.ID.String(), adjustment.StatusSubmitted, "acme"}, args[n-3:])

	set := setClause(t, sql)
	assert.Contains(t, set, "journal_id = $")
	assert.NotContains(t, set, " reason = ")
}

var numericColumn = regexp.MustCompile(`(?m)^\s+(\w+)\s+NUMERIC\(\d+,\s*(\d+)\)`)

// Line unit costs must survive a store and reload unchanged.
func TestLineColumns_HoldCostScale(t *testing.T) {
	raw, err := os.ReadFile("../../../../../db/migrations/0001_init.sql")
	require.NoError(t, err)

	_, lines, ok := strings.Cut(string(raw), "CREATE TABLE "+adjustmentLinesTable)
	require.True(t, ok)
	lines, _, _ = strings.Cut(lines, ");")

	scales := map[string]int32{}
	for _, m := range numericColumn.FindAllStringSubmatch(lines, -1) {
		s, err := strconv.Atoi(m[2])
		require.NoError(t, err)
		scales[m[1]] = int32(s)
	}
	assert.Equal(t, types.CostScale, scales["unit_cost"])
	assert.GreaterOrEqual(t, scales["adjusted_quantity"], types.QuantityScale)
}
