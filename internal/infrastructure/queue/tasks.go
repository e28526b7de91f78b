// Package queue runs stock adjustment approvals in the background on asynq.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	appctx "stockpost/internal/core/context"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
)

const (
	// QueueDefault is the queue approval tasks are placed on.
	QueueDefault = "default"
	// TaskApproveAdjustment approves one submitted adjustment.
	TaskApproveAdjustment = "stock_adjustment:approve"
)

// ApprovePayload carries the tenant scope of the requester and the document to approve.
type ApprovePayload struct {
	TenantID     string   `json:"tenant_id"`
	ActorID      string   `json:"actor_id"`
	Permissions  []string `json:"permissions,omitempty"`
	IsAdmin      bool     `json:"is_admin,omitempty"`
	AdjustmentID id.ID    `json:"adjustment_id"`
	RequestID    string   `json:"request_id,omitempty"`
}

// Tenant rebuilds the tenant scope of the request.
func (p ApprovePayload) Tenant() tenant.Context {
	return tenant.Context{
		TenantID:    p.TenantID,
		ActorID:     p.ActorID,
		Permissions: p.Permissions,
		IsAdmin:     p.IsAdmin,
	}
}

// approveTaskID lets only one approval task per document wait in the queue.
func approveTaskID(tenantID string, docID id.ID) string {
	return fmt.Sprintf("approve:%s:%s", tenantID, docID)
}

// NewApproveTask builds the task for an adjustment. The request ID of ctx
// travels with the task.
func NewApproveTask(ctx context.Context, tc tenant.Context, docID id.ID, maxRetry int) (*asynq.Task, error) {
	body, err := json.Marshal(ApprovePayload{
		TenantID:     tc.TenantID,
		ActorID:      tc.ActorID,
		Permissions:  tc.Permissions,
		IsAdmin:      tc.IsAdmin,
		AdjustmentID: docID,
		RequestID:    appctx.GetRequestID(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal approve payload: %w", err)
	}
	return asynq.NewTask(TaskApproveAdjustment, body,
		asynq.Queue(QueueDefault),
		asynq.TaskID(approveTaskID(tc.TenantID, docID)),
		asynq.MaxRetry(maxRetry),
	), nil
}
