package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/tenant"
)

func TestApprovalRule_EmptyAllowsEverything(t *testing.T) {
	rule, err := CompileApprovalRule("  ")
	require.NoError(t, err)
	assert.NoError(t, rule.Check(ApprovalFacts{ActorIsCreator: true, TotalBase: 1e9}))
}

func TestApprovalRule_DeniesSelfApprovalAboveLimit(t *testing.T) {
	rule, err := CompileApprovalRule(`!actor_is_creator || total_base < 1000.0`)
	require.NoError(t, err)

	assert.NoError(t, rule.Check(ApprovalFacts{ActorIsCreator: true, TotalBase: 999}))
	assert.NoError(t, rule.Check(ApprovalFacts{ActorIsCreator: false, TotalBase: 5000}))

	err = rule.Check(ApprovalFacts{ActorIsCreator: true, TotalBase: 5000})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeApprovalDenied))
}

func TestApprovalRule_RejectsNonBoolean(t *testing.T) {
	_, err := CompileApprovalRule(`line_count + 1`)
	assert.Error(t, err)
}

func TestApprovalRule_RejectsUnknownVariable(t *testing.T) {
	_, err := CompileApprovalRule(`warehouse == "x"`)
	assert.Error(t, err)
}

func TestRequirePermission(t *testing.T) {
	tc := tenant.Context{TenantID: "t1", Permissions: []string{PermAdjustmentRead}}
	assert.NoError(t, RequirePermission(tc, PermAdjustmentRead))

	err := RequirePermission(tc, PermAdjustmentApprove)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, apperror.CodeForbidden))

	tc.IsAdmin = true
	assert.NoError(t, RequirePermission(tc, PermAdjustmentApprove))
}
