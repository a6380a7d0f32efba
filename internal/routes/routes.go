package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/institute-admission-api/internal/handler"
	"github.com/noah-isme/institute-admission-api/internal/middleware"
	"github.com/noah-isme/institute-admission-api/internal/models"
)

// Handlers groups the HTTP handlers mounted by Register.
type Handlers struct {
	Enrollments   *handler.EnrollmentHandler
	Waitlists     *handler.WaitlistHandler
	Courses       *handler.CourseHandler
	Batches       *handler.BatchHandler
	Notifications *handler.NotificationHandler
	Admin         *handler.AdminHandler
	Metrics       *handler.MetricsHandler
}

// Dependencies carries the cross-cutting collaborators of the router.
type Dependencies struct {
	Prefix string
	Tokens middleware.TokenValidator
	Audit  middleware.AuditWriter
	Logger *zap.Logger
}

// Register mounts the health endpoints and the authenticated API under deps.Prefix.
func Register(r *gin.Engine, h Handlers, deps Dependencies) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)
	audit := func(action, resource string) gin.HandlerFunc {
		return middleware.Audit(deps.Audit, deps.Logger, action, resource)
	}

	api := r.Group(deps.Prefix)
	api.Use(middleware.JWT(deps.Tokens))

	courses := api.Group("/courses")
	courses.GET("", h.Courses.List)
	courses.GET("/:id", h.Courses.Get)
	courses.GET("/:id/prerequisite-status", h.Courses.PrerequisiteStatus)
	courses.POST("", staff, audit("COURSE_CREATE", "course"), h.Courses.Create)
	courses.PATCH("/:id", staff, audit("COURSE_UPDATE", "course"), h.Courses.Update)
	courses.PUT("/:id/prerequisites", staff, h.Courses.SetPrerequisites)

	batches := api.Group("/batches")
	batches.GET("", h.Batches.List)
	batches.GET("/:id", h.Batches.Get)
	batches.GET("/:id/availability", h.Batches.Availability)
	batches.GET("/:id/roster", middleware.RequireRoles(models.RoleAdmin, models.RoleStaff, models.RoleInstructor), h.Batches.Roster)
	batches.POST("", staff, audit("BATCH_CREATE", "batch"), h.Batches.Create)
	batches.PATCH("/:id", staff, h.Batches.Update)
	batches.POST("/:id/schedules", staff, audit("SCHEDULE_CREATE", "batch"), h.Batches.AddSchedule)
	batches.DELETE("/:id/schedules/:scheduleId", staff, audit("SCHEDULE_DELETE", "batch"), h.Batches.RemoveSchedule)
	batches.POST("/:id/bulk-enroll", staff, h.Enrollments.BulkEnroll)

	enrollments := api.Group("/enrollments")
	enrollments.POST("/check", h.Enrollments.Check)
	enrollments.POST("", h.Enrollments.Create)
	enrollments.GET("", h.Enrollments.List)
	enrollments.GET("/:id", h.Enrollments.Get)
	enrollments.PATCH("/:id/status", staff, h.Enrollments.UpdateStatus)
	enrollments.DELETE("/:id", staff, h.Enrollments.Delete)

	waitlists := api.Group("/waitlists")
	waitlists.POST("", h.Waitlists.Join)
	waitlists.GET("", h.Waitlists.List)
	waitlists.GET("/position", h.Waitlists.Position)
	waitlists.POST("/:id/cancel", h.Waitlists.Cancel)
	waitlists.POST("/:id/expire", staff, h.Waitlists.Expire)
	waitlists.DELETE("/:id", staff, h.Waitlists.Delete)

	notifications := api.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.POST("/:id/read", h.Notifications.MarkRead)

	admin := api.Group("/admin", staff)
	admin.POST("/reconcile-counts", h.Admin.ReconcileCounts)
	admin.GET("/reconcile-counts", h.Admin.ReconcileStatus)
	admin.GET("/audit-logs", h.Admin.AuditLogs)
}
