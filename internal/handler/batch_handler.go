package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-admission-api/internal/middleware"
	"github.com/noah-isme/institute-admission-api/internal/models"
	"github.com/noah-isme/institute-admission-api/internal/service"
	"github.com/noah-isme/institute-admission-api/pkg/response"
)

type batchService interface {
	List(ctx context.Context, filter models.BatchFilter) ([]models.Batch, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Batch, error)
	Create(ctx context.Context, actor models.Actor, req models.CreateBatchRequest) (*models.Batch, error)
	Update(ctx context.Context, actor models.Actor, batchID string, req models.UpdateBatchRequest) (*models.BatchUpdateResult, error)
	AddSchedule(ctx context.Context, actor models.Actor, batchID string, req models.CreateScheduleRequest) (*models.Schedule, error)
	RemoveSchedule(ctx context.Context, actor models.Actor, batchID, scheduleID string) error
	Availability(ctx context.Context, batchID string) (*models.BatchAvailability, bool, error)
	Roster(ctx context.Context, actor models.Actor, batchID, format string) (*service.RosterFile, error)
}

// BatchHandler exposes batch management endpoints.
type BatchHandler struct {
	batches batchService
}

// NewBatchHandler constructs BatchHandler.
func NewBatchHandler(batches batchService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// List godoc
// @Summary List batches
// @Tags Batches
// @Produce json
// @Param courseId query string false "Filter by course"
// @Param instructorId query string false "Filter by instructor"
// @Param active query bool false "Only active batches"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /batches [get]
func (h *BatchHandler) List(c *gin.Context) {
	filter := models.BatchFilter{
		CourseID:     c.Query("courseId"),
		InstructorID: c.Query("instructorId"),
	}
	if raw := c.Query("active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			filter.Active = &active
		}
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.batches.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a batch with its weekly schedule
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id} [get]
func (h *BatchHandler) Get(c *gin.Context) {
	batch, err := h.batches.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Create godoc
// @Summary Create a batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param payload body models.CreateBatchRequest true "Batch payload"
// @Success 201 {object} response.Envelope
// @Router /batches [post]
func (h *BatchHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CreateBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	batch, err := h.batches.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Params = append(c.Params, gin.Param{Key: "id", Value: batch.ID})
	response.Created(c, batch)
}

// Update godoc
// @Summary Update a batch
// @Description Raising capacity on an active batch promotes waiting students into the new seats.
// @Tags Batches
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body models.UpdateBatchRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /batches/{id} [patch]
func (h *BatchHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.UpdateBatchRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.batches.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// AddSchedule godoc
// @Summary Add a weekly slot to a batch
// @Tags Batches
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body models.CreateScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Router /batches/{id}/schedules [post]
func (h *BatchHandler) AddSchedule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CreateScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	schedule, err := h.batches.AddSchedule(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// RemoveSchedule godoc
// @Summary Remove a weekly slot from a batch
// @Tags Batches
// @Param id path string true "Batch ID"
// @Param scheduleId path string true "Schedule ID"
// @Success 204
// @Router /batches/{id}/schedules/{scheduleId} [delete]
func (h *BatchHandler) RemoveSchedule(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.batches.RemoveSchedule(c.Request.Context(), actor, c.Param("id"), c.Param("scheduleId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Availability godoc
// @Summary Seat availability of a batch
// @Tags Batches
// @Produce json
// @Param id path string true "Batch ID"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/availability [get]
func (h *BatchHandler) Availability(c *gin.Context) {
	availability, hit, err := h.batches.Availability(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, availability, nil, middleware.ExtractMeta(c))
}

// Roster godoc
// @Summary Export the roster of a batch
// @Tags Batches
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Batch ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /batches/{id}/roster [get]
func (h *BatchHandler) Roster(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, err := h.batches.Roster(c.Request.Context(), actor, c.Param("id"), c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
