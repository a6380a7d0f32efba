package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/institute-admission-api/api/swagger"
	"github.com/noah-isme/institute-admission-api/internal/handler"
	"github.com/noah-isme/institute-admission-api/internal/middleware"
	"github.com/noah-isme/institute-admission-api/internal/repository"
	"github.com/noah-isme/institute-admission-api/internal/routes"
	"github.com/noah-isme/institute-admission-api/internal/service"
	"github.com/noah-isme/institute-admission-api/pkg/cache"
	"github.com/noah-isme/institute-admission-api/pkg/config"
	"github.com/noah-isme/institute-admission-api/pkg/database"
	"github.com/noah-isme/institute-admission-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/institute-admission-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/institute-admission-api/pkg/middleware/requestid"
)

// @title Institute Admission API
// @version 1.0.0
// @description Course enrollment admission and waitlist promotion for a training institute.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		client, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, availability cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			cacheRepo = repository.NewCacheRepository(client, logger.Component(logr, "cache"))
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Cache.AvailabilityTTL, logger.Component(logr, "cache"), cacheRepo != nil)

	validate := validator.New()
	reader := repository.NewStore(db)
	store := service.NewAdmissionStore(repository.NewTransactor(db, cfg.Admission.LockTimeout, metrics))

	admissionSvc := service.NewAdmissionService(store, reader, cacheSvc, metrics, validate, logger.Component(logr, "admission"),
		service.AdmissionConfig{MaxBulkSize: cfg.Admission.MaxBulkSize})
	waitlistSvc := service.NewWaitlistService(store, reader, cacheSvc, validate, logger.Component(logr, "waitlist"))
	courseSvc := service.NewCourseService(store, reader, validate, logger.Component(logr, "course"))
	batchSvc := service.NewBatchService(reader, store, cacheSvc, validate, logger.Component(logr, "batch"))
	notificationSvc := service.NewNotificationService(reader)
	auditSvc := service.NewAuditService(reader)
	reconcileSvc := service.NewReconcileService(store, reader, cacheSvc, metrics, logger.Component(logr, "reconcile"), service.ReconcileConfig{
		Workers:    cfg.Reconcile.Workers,
		MaxRetries: cfg.Reconcile.MaxRetries,
		RetryDelay: cfg.Reconcile.RetryDelay,
	})
	authSvc := service.NewAuthService(logger.Component(logr, "auth"), service.AuthConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	reconcileSvc.Start(rootCtx)
	defer reconcileSvc.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.WithResponseMeta())

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	routes.Register(r, routes.Handlers{
		Enrollments:   handler.NewEnrollmentHandler(admissionSvc),
		Waitlists:     handler.NewWaitlistHandler(waitlistSvc),
		Courses:       handler.NewCourseHandler(courseSvc),
		Batches:       handler.NewBatchHandler(batchSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Admin:         handler.NewAdminHandler(reconcileSvc, auditSvc),
		Metrics:       handler.NewMetricsHandler(metrics, db),
	}, routes.Dependencies{
		Prefix: cfg.APIPrefix,
		Tokens: authSvc,
		Audit:  reader,
		Logger: logger.Component(logr, "audit"),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
