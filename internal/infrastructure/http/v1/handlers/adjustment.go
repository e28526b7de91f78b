// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"stockpost/internal/core/apperror"
	"stockpost/internal/core/id"
	"stockpost/internal/core/tenant"
	"stockpost/internal/domain/adjustment"
	"stockpost/internal/infrastructure/http/v1/dto"
)

// AdjustmentService is the workflow surface used by AdjustmentHandler.
type AdjustmentService interface {
	CreateDraft(ctx context.Context, tc tenant.Context, h adjustment.Header, lines []adjustment.LineInput) (*adjustment.Adjustment, error)
	UpdateDraft(ctx context.Context, tc tenant.Context, docID id.ID, h adjustment.Header, lines []adjustment.LineInput) (*adjustment.Adjustment, error)
	ReplaceDraftLines(ctx context.Context, tc tenant.Context, docID id.ID, lines []adjustment.LineInput) (*adjustment.Adjustment, error)
	Submit(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error)
	Approve(ctx context.Context, tc tenant.Context, docID id.ID, actorID string) (*adjustment.Adjustment, error)
	Reject(ctx context.Context, tc tenant.Context, docID id.ID, actorID, reason string) (*adjustment.Adjustment, error)
	DeleteDraft(ctx context.Context, tc tenant.Context, docID id.ID) error
	Get(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error)
	List(ctx context.Context, tc tenant.Context, filter adjustment.ListFilter) ([]*adjustment.Adjustment, error)
}

// ApprovalEnqueuer hands an approval to the background worker.
type ApprovalEnqueuer interface {
	EnqueueApprove(ctx context.Context, tc tenant.Context, docID id.ID) (string, error)
}

// AdjustmentHandler handles stock adjustment endpoints.
type AdjustmentHandler struct {
	BaseHandler
	service  AdjustmentService
	enqueuer ApprovalEnqueuer
}

// NewAdjustmentHandler creates a new adjustment handler. enqueuer may be nil,
// in which case ?async=true is refused.
func NewAdjustmentHandler(service AdjustmentService, enqueuer ApprovalEnqueuer) *AdjustmentHandler {
	return &AdjustmentHandler{service: service, enqueuer: enqueuer}
}

// Create handles POST /stock-adjustments.
func (h *AdjustmentHandler) Create(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	var req dto.AdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, err := h.service.CreateDraft(c.Request.Context(), tc, req.ToHeader(), dto.ToLineInputs(req.Lines))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromAdjustment(doc))
}

// List handles GET /stock-adjustments.
func (h *AdjustmentHandler) List(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	var q dto.ListAdjustmentsQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := q.ToFilter()
	docs, err := h.service.List(c.Request.Context(), tc, filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	filter.Normalize()
	h.OK(c, dto.ListResponse[dto.AdjustmentResponse]{
		Items:  dto.FromAdjustments(docs),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// Get handles GET /stock-adjustments/:id.
func (h *AdjustmentHandler) Get(c *gin.Context) {
	h.withDocument(c, func(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error) {
		return h.service.Get(ctx, tc, docID)
	})
}

// Update handles PUT /stock-adjustments/:id.
func (h *AdjustmentHandler) Update(c *gin.Context) {
	var req dto.AdjustmentRequest
	h.withDocument(c, func(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error) {
		if !h.BindJSON(c, &req) {
			return nil, nil
		}
		return h.service.UpdateDraft(ctx, tc, docID, req.ToHeader(), dto.ToLineInputs(req.Lines))
	})
}

// ReplaceLines handles PUT /stock-adjustments/:id/lines.
func (h *AdjustmentHandler) ReplaceLines(c *gin.Context) {
	var req dto.ReplaceLinesRequest
	h.withDocument(c, func(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error) {
		if !h.BindJSON(c, &req) {
			return nil, nil
		}
		return h.service.ReplaceDraftLines(ctx, tc, docID, dto.ToLineInputs(req.Lines))
	})
}

// Delete handles DELETE /stock-adjustments/:id.
func (h *AdjustmentHandler) Delete(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteDraft(c.Request.Context(), tc, docID); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// Submit handles POST /stock-adjustments/:id/submit.
func (h *AdjustmentHandler) Submit(c *gin.Context) {
	h.withDocument(c, func(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error) {
		return h.service.Submit(ctx, tc, docID)
	})
}

// Approve handles POST /stock-adjustments/:id/approve.
// With ?async=true the approval is queued and 202 is returned.
func (h *AdjustmentHandler) Approve(c *gin.Context) {
	async, _ := strconv.ParseBool(c.Query("async"))
	if async {
		h.approveAsync(c)
		return
	}
	h.withDocument(c, func(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error) {
		return h.service.Approve(ctx, tc, docID, "")
	})
}

func (h *AdjustmentHandler) approveAsync(c *gin.Context) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}
	if h.enqueuer == nil {
		h.Error(c, apperror.NewBusinessRule("ASYNC_DISABLED", "asynchronous approval is not configured"))
		return
	}

	ctx := c.Request.Context()
	doc, err := h.service.Get(ctx, tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if doc.Status != adjustment.StatusSubmitted {
		h.Error(c, apperror.NewInvalidState(adjustment.EntityName, string(doc.Status), "approve"))
		return
	}

	taskID, err := h.enqueuer.EnqueueApprove(ctx, tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Accepted(c, dto.QueuedResponse{
		TaskID:       taskID,
		AdjustmentID: docID.String(),
		Status:       "queued",
	})
}

// Reject handles POST /stock-adjustments/:id/reject.
func (h *AdjustmentHandler) Reject(c *gin.Context) {
	var req dto.RejectRequest
	h.withDocument(c, func(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error) {
		if !h.BindJSON(c, &req) {
			return nil, nil
		}
		return h.service.Reject(ctx, tc, docID, "", req.Reason)
	})
}

// withDocument resolves tenant and path id, runs op and renders the document.
// op returning (nil, nil) means it already answered the request.
func (h *AdjustmentHandler) withDocument(c *gin.Context, op func(ctx context.Context, tc tenant.Context, docID id.ID) (*adjustment.Adjustment, error)) {
	tc, ok := h.Tenant(c)
	if !ok {
		return
	}
	docID, ok := h.PathID(c, "id")
	if !ok {
		return
	}

	doc, err := op(c.Request.Context(), tc, docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	if doc == nil {
		return
	}
	h.OK(c, dto.FromAdjustment(doc))
}
