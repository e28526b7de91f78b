package dto

import (
	"fmt"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockpost/internal/core/apperror"
)

const (
	primaryAccount = "00000000-0000-0000-0000-0000000000aa"
	otherAccount   = "00000000-0000-0000-0000-0000000000bb"
)

func adjustmentBody(primary, corresponding, qty string) []byte {
	return []byte(fmt.Sprintf(`{
		"storeId": "00000000-0000-0000-0000-000000000001",
		"direction": "add",
		"reason": "cycle count",
		"primaryAccountId": %q,
		"correspondingAccountId": %q,
		"currency": "USD",
		"exchangeRate": "1",
		"lines": [{"productId": "00000000-0000-0000-0000-000000000002", "adjustedQuantity": %q, "unitCost": "12.345678"}]
	}`, primary, corresponding, qty))
}

func TestAdjustmentRequest_DistinctAccountsBind(t *testing.T) {
	RegisterValidators()

	var req AdjustmentRequest
	err := binding.JSON.BindBody(adjustmentBody(primaryAccount, otherAccount, "5"), &req)
	require.NoError(t, err)
	assert.Equal(t, primaryAccount, req.PrimaryAccountID.String())
	assert.Equal(t, otherAccount, req.CorrespondingAccountID.String())
	assert.Equal(t, "12.345678", req.Lines[0].UnitCost.String())
}

func TestAdjustmentRequest_SameAccountsLeftToDomain(t *testing.T) {
	RegisterValidators()

	// Binding accepts it; Header.Validate answers with VALIDATION_ERROR.
	var req AdjustmentRequest
	err := binding.JSON.BindBody(adjustmentBody(primaryAccount, primaryAccount, "5"), &req)
	require.NoError(t, err)

	h := req.ToHeader()
	appErr, ok := apperror.AsAppError(h.Validate())
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, "correspondingAccountId", appErr.Details["field"])
}

func TestAdjustmentRequest_DecimalTags(t *testing.T) {
	RegisterValidators()

	var req AdjustmentRequest
	err := binding.JSON.BindBody(adjustmentBody(primaryAccount, otherAccount, "0"), &req)
	require.Error(t, err)
	assert.Equal(t, "decimal_gt0", FieldErrors(err)["lines[0].adjustedQuantity"])
}

func TestRegisterTags_ReportsFailure(t *testing.T) {
	v := validator.New()

	require.NoError(t, registerTags(v, decimalValidators))

	err := registerTags(v, map[string]validator.Func{"": decimalNotNegative})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register validator")
}
