// Package tenant defines the explicit tenant scope passed to every service and repository call.
// Every row in the database carries tenant_id; queries always filter by Context.TenantID.
package tenant

import (
	"context"
	"slices"
	"strings"

	"stockpost/internal/core/apperror"
)

// Context identifies the tenant and the acting user of a call.
type Context struct {
	TenantID    string
	ActorID     string
	Permissions []string
	IsAdmin     bool
}

// New builds a Context for a tenant and actor.
func New(tenantID, actorID string) Context {
	return Context{TenantID: tenantID, ActorID: actorID}
}

// Validate fails when the tenant scope is missing.
func (c Context) Validate() error {
	if strings.TrimSpace(c.TenantID) == "" {
		return apperror.NewUnauthorized("tenant is not resolved")
	}
	return nil
}

// HasPermission reports whether the actor holds the permission.
func (c Context) HasPermission(perm string) bool {
	return c.IsAdmin || slices.Contains(c.Permissions, perm)
}

// WithActor returns a copy acting on behalf of another user.
func (c Context) WithActor(actorID string) Context {
	c.ActorID = actorID
	return c
}

type ctxKey struct{}

// WithContext stores the tenant scope in ctx.
// Only the transport layer uses this; services receive Context explicitly.
func WithContext(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// FromContext extracts the tenant scope stored by WithContext.
func FromContext(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// GetTenantID returns tenant ID or empty string.
func GetTenantID(ctx context.Context) string {
	if tc, ok := FromContext(ctx); ok {
		return tc.TenantID
	}
	return ""
}

// GetActorID returns the acting user ID or empty string.
func GetActorID(ctx context.Context) string {
	if tc, ok := FromContext(ctx); ok {
		return tc.ActorID
	}
	return ""
}
