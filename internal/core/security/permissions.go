// Package security provides authorization checks and approval rules.
package security

import (
	"fmt"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/tenant"
)

// Permission names carried in access tokens.
const (
	PermAdjustmentRead    = "stock_adjustment:read"
	PermAdjustmentWrite   = "stock_adjustment:write"
	PermAdjustmentApprove = "stock_adjustment:approve"
)

// RequirePermission returns a forbidden error if the actor lacks perm.
func RequirePermission(tc tenant.Context, perm string) error {
	if !tc.HasPermission(perm) {
		return apperror.NewForbidden(fmt.Sprintf("permission %s required", perm)).
			WithDetail("permission", perm)
	}
	return nil
}
