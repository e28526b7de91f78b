// Package audit defines the audit trail written alongside document state changes.
package audit

import (
	"context"

	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Entry is a single audit record. The user is taken from the tenant context.
type Entry struct {
	EntityType string
	EntityID   id.ID
	Action     Action
	Changes    map[string]any
	Metadata   map[string]any
}

// Recorder persists audit entries in the caller's transaction.
type Recorder interface {
	Log(ctx context.Context, tc tenant.Context, entry Entry) error
}

// Nop discards entries.
type Nop struct{}

// Log does nothing.
func (Nop) Log(context.Context, tenant.Context, Entry) error { return nil }
