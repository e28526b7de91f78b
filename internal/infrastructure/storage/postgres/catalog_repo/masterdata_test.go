package catalog_repo

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/tenant"
)

func TestLatestRate_SQL(t *testing.T) {
	repo := NewMasterDataRepo(nil)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	sql, args, err := repo.latestRateQuery(tenant.New("acme", "alice"), "EUR", "USD", at).ToSql()
	require.NoError(t, err)

	wantTail := " FROM md_exchange_rates WHERE from_currency = $1 AND is_active = $2 AND tenant_id = $3" +
		" AND to_currency = $4 AND effective_at <= $5 ORDER BY effective_at DESC LIMIT 1"
	assert.True(t, strings.HasSuffix(sql, wantTail), sql)
	assert.Equal(t, []any{"EUR", true, "acme", "USD", at}, args)
}
