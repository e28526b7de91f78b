package v1

import (
	"github.com/gin-gonic/gin"

	"stockpost/internal/core/security"
	"stockpost/internal/infrastructure/http/v1/middleware"
)

// WorkflowRouteHandler defines the routes of a document with a submit/approve workflow.
type WorkflowRouteHandler interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Get(c *gin.Context)
	Update(c *gin.Context)
	ReplaceLines(c *gin.Context)
	Delete(c *gin.Context)
	Submit(c *gin.Context)
	Approve(c *gin.Context)
	Reject(c *gin.Context)
}

// WorkflowPermissions names the permission guarding each kind of route.
type WorkflowPermissions struct {
	Read    string
	Write   string
	Approve string
}

// AdjustmentPermissions guards the stock adjustment routes.
var AdjustmentPermissions = WorkflowPermissions{
	Read:    security.PermAdjustmentRead,
	Write:   security.PermAdjustmentWrite,
	Approve: security.PermAdjustmentApprove,
}

// RegisterWorkflowRoutes registers CRUD and transition routes for a workflow document.
//
// Usage:
//
//	handler := handlers.NewAdjustmentHandler(service, enqueuer)
//	RegisterWorkflowRoutes(api.Group("/stock-adjustments"), handler, AdjustmentPermissions)
func RegisterWorkflowRoutes(group *gin.RouterGroup, handler WorkflowRouteHandler, perms WorkflowPermissions) {
	group.GET("", middleware.RequirePermission(perms.Read), handler.List)
	group.POST("", middleware.RequirePermission(perms.Write), handler.Create)
	group.GET("/:id", middleware.RequirePermission(perms.Read), handler.Get)
	group.PUT("/:id", middleware.RequirePermission(perms.Write), handler.Update)
	group.PUT("/:id/lines", middleware.RequirePermission(perms.Write), handler.ReplaceLines)
	group.DELETE("/:id", middleware.RequirePermission(perms.Write), handler.Delete)
	group.POST("/:id/submit", middleware.RequirePermission(perms.Write), handler.Submit)
	group.POST("/:id/approve", middleware.RequirePermission(perms.Approve), handler.Approve)
	group.POST("/:id/reject", middleware.RequirePermission(perms.Approve), handler.Reject)
}
