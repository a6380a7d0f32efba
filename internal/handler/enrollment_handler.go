package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/institute-admission-api/internal/models"
	"github.com/noah-isme/institute-admission-api/pkg/response"
)

type admissionService interface {
	Check(ctx context.Context, actor models.Actor, req models.EligibilityRequest) (*models.EligibilityResult, error)
	Enroll(ctx context.Context, actor models.Actor, req models.CreateEnrollmentRequest) (*models.AdmissionResult, error)
	Drop(ctx context.Context, actor models.Actor, enrollmentID string) (*models.DropResult, error)
	UpdateStatus(ctx context.Context, actor models.Actor, enrollmentID string, req models.UpdateEnrollmentStatusRequest) (*models.StatusUpdateResult, error)
	BulkEnroll(ctx context.Context, actor models.Actor, batchID string, req models.BulkEnrollRequest) (*models.BulkEnrollmentResult, error)
	List(ctx context.Context, actor models.Actor, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.EnrollmentDetail, error)
}

// EnrollmentHandler exposes admission endpoints.
type EnrollmentHandler struct {
	admission admissionService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(admission admissionService) *EnrollmentHandler {
	return &EnrollmentHandler{admission: admission}
}

// Check godoc
// @Summary Preview admission eligibility
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body models.EligibilityRequest true "Student and batch"
// @Success 200 {object} response.Envelope
// @Router /enrollments/check [post]
func (h *EnrollmentHandler) Check(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.EligibilityRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.admission.Check(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Create godoc
// @Summary Enroll a student into a batch
// @Description Students enroll themselves; admin and staff must pass student_id.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body models.CreateEnrollmentRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CreateEnrollmentRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.admission.Enroll(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result.Enrollment, response.Warnings(result.Warnings))
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param batchId query string false "Filter by batch"
// @Param courseId query string false "Filter by course"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.EnrollmentFilter{
		StudentID: c.Query("studentId"),
		BatchID:   c.Query("batchId"),
		CourseID:  c.Query("courseId"),
		Status:    models.EnrollmentStatus(strings.ToLower(c.Query("status"))),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = pageParams(c)

	items, pagination, err := h.admission.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get enrollment detail
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	detail, err := h.admission.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStatus godoc
// @Summary Change enrollment status
// @Description Dropping frees the seat and promotes the next waitlisted student.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body models.UpdateEnrollmentStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [patch]
func (h *EnrollmentHandler) UpdateStatus(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.UpdateEnrollmentStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.admission.UpdateStatus(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Drop an enrollment
// @Description Removes the enrollment and promotes the next waitlisted student when a seat opens.
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.admission.Drop(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkEnroll godoc
// @Summary Enroll many students into one batch
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Batch ID"
// @Param payload body models.BulkEnrollRequest true "Student IDs"
// @Success 200 {object} response.Envelope
// @Router /batches/{id}/bulk-enroll [post]
func (h *EnrollmentHandler) BulkEnroll(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.BulkEnrollRequest
	if !bindJSON(c, &req) {
		return
	}
	result, err := h.admission.BulkEnroll(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
