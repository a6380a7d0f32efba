package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-admission-api/internal/models"
	"github.com/noah-isme/institute-admission-api/pkg/response"
)

type waitlistService interface {
	Join(ctx context.Context, actor models.Actor, req models.JoinWaitlistRequest) (*models.WaitlistEntry, error)
	Cancel(ctx context.Context, actor models.Actor, id string) (*models.WaitlistEntry, error)
	Expire(ctx context.Context, actor models.Actor, id string) (*models.WaitlistEntry, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	List(ctx context.Context, actor models.Actor, filter models.WaitlistFilter) ([]models.WaitlistEntryDetail, *models.Pagination, error)
	Position(ctx context.Context, actor models.Actor, batchID, studentID string) (*models.WaitlistPosition, error)
}

// WaitlistHandler exposes waitlist endpoints.
type WaitlistHandler struct {
	waitlist waitlistService
}

// NewWaitlistHandler constructs WaitlistHandler.
func NewWaitlistHandler(waitlist waitlistService) *WaitlistHandler {
	return &WaitlistHandler{waitlist: waitlist}
}

// Join godoc
// @Summary Join the waitlist of a full batch
// @Tags Waitlists
// @Accept json
// @Produce json
// @Param payload body models.JoinWaitlistRequest true "Waitlist payload"
// @Success 201 {object} response.Envelope
// @Router /waitlists [post]
func (h *WaitlistHandler) Join(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.JoinWaitlistRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := h.waitlist.Join(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// List godoc
// @Summary List waitlist entries
// @Tags Waitlists
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param batchId query string false "Filter by batch"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /waitlists [get]
func (h *WaitlistHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.WaitlistFilter{
		StudentID: c.Query("studentId"),
		BatchID:   c.Query("batchId"),
		Status:    models.WaitlistStatus(strings.ToLower(c.Query("status"))),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.waitlist.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Position godoc
// @Summary Show a student's place in a batch queue
// @Tags Waitlists
// @Produce json
// @Param batchId query string true "Batch ID"
// @Param studentId query string false "Student ID (staff only)"
// @Success 200 {object} response.Envelope
// @Router /waitlists/position [get]
func (h *WaitlistHandler) Position(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	position, err := h.waitlist.Position(c.Request.Context(), actor, c.Query("batchId"), c.Query("studentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, position, nil)
}

// Cancel godoc
// @Summary Leave a waitlist
// @Tags Waitlists
// @Produce json
// @Param id path string true "Waitlist entry ID"
// @Success 200 {object} response.Envelope
// @Router /waitlists/{id}/cancel [post]
func (h *WaitlistHandler) Cancel(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	entry, err := h.waitlist.Cancel(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Expire godoc
// @Summary Expire a waitlist entry
// @Tags Waitlists
// @Produce json
// @Param id path string true "Waitlist entry ID"
// @Success 200 {object} response.Envelope
// @Router /waitlists/{id}/expire [post]
func (h *WaitlistHandler) Expire(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	entry, err := h.waitlist.Expire(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

// Delete godoc
// @Summary Remove a waitlist entry
// @Tags Waitlists
// @Param id path string true "Waitlist entry ID"
// @Success 204
// @Router /waitlists/{id} [delete]
func (h *WaitlistHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.waitlist.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
