package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-admission-api/internal/models"
	"github.com/noah-isme/institute-admission-api/pkg/response"
)

type reconcileService interface {
	Enqueue(actor models.Actor) (bool, error)
	LastResult() *models.ReconcileResult
}

type auditLogService interface {
	List(ctx context.Context, actor models.Actor, filter models.AuditLogFilter) ([]models.AuditLog, *models.Pagination, error)
}

// AdminHandler exposes maintenance operations and the audit trail.
type AdminHandler struct {
	reconcile reconcileService
	audits    auditLogService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(reconcile reconcileService, audits auditLogService) *AdminHandler {
	return &AdminHandler{reconcile: reconcile, audits: audits}
}

// ReconcileCounts godoc
// @Summary Recompute cached enrolled counts in the background
// @Tags Admin
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /admin/reconcile-counts [post]
func (h *AdminHandler) ReconcileCounts(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	accepted, err := h.reconcile.Enqueue(actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"accepted": accepted}, nil)
}

// ReconcileStatus godoc
// @Summary Result of the last count reconciliation
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/reconcile-counts [get]
func (h *AdminHandler) ReconcileStatus(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.reconcile.LastResult(), nil)
}

// AuditLogs godoc
// @Summary List audit trail entries
// @Tags Admin
// @Produce json
// @Param resource query string false "Filter by resource (enrollment, waitlist, batch, course)"
// @Param resourceId query string false "Filter by resource ID"
// @Param userId query string false "Filter by acting user"
// @Param action query string false "Filter by action"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/audit-logs [get]
func (h *AdminHandler) AuditLogs(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.AuditLogFilter{
		Resource:   c.Query("resource"),
		ResourceID: c.Query("resourceId"),
		UserID:     c.Query("userId"),
		Action:     c.Query("action"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	logs, pagination, err := h.audits.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
