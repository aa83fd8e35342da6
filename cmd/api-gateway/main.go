package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/maintenance-portal-api/api/swagger"
	"github.com/noah-isme/maintenance-portal-api/internal/handler"
	"github.com/noah-isme/maintenance-portal-api/internal/middleware"
	"github.com/noah-isme/maintenance-portal-api/internal/models"
	"github.com/noah-isme/maintenance-portal-api/internal/repository"
	"github.com/noah-isme/maintenance-portal-api/internal/service"
	"github.com/noah-isme/maintenance-portal-api/migrations"
	"github.com/noah-isme/maintenance-portal-api/pkg/cache"
	"github.com/noah-isme/maintenance-portal-api/pkg/config"
	"github.com/noah-isme/maintenance-portal-api/pkg/database"
	"github.com/noah-isme/maintenance-portal-api/pkg/jobs"
	"github.com/noah-isme/maintenance-portal-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/maintenance-portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/maintenance-portal-api/pkg/middleware/requestid"
	"github.com/noah-isme/maintenance-portal-api/pkg/storage"
)

// @title Maintenance Portal API
// @version 1.0.0
// @description Campus maintenance request submission, handling, analytics and reporting
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.MigrateOnStart {
		migrator, err := database.NewMigrator(db.DB, migrations.FS, logr)
		if err != nil {
			logr.Fatal("failed to init migrator", zap.Error(err))
		}
		if err := migrator.Up(ctx); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, analytics cache disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	proofStore, err := storage.New(ctx, cfg.Uploads, cfg.S3)
	if err != nil {
		logr.Fatal("failed to init proof storage", zap.Error(err))
	}

	reportLocation, err := time.LoadLocation(cfg.Reports.Timezone)
	if err != nil {
		logr.Warn("unknown report timezone, using UTC", zap.String("timezone", cfg.Reports.Timezone), zap.Error(err))
		reportLocation = time.UTC
	}

	metricsSvc := service.NewMetricsService()
	validate := service.NewValidator()

	userRepo := repository.NewUserRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled && redisClient != nil)
	janitor := service.NewProofJanitor(proofStore, requestRepo, metricsSvc, logr, cfg.Maintenance.SweepGrace)

	cleanupQueue := jobs.NewQueue("proof-cleanup", janitor.HandleCleanup, jobs.QueueConfig{
		Workers:    cfg.Maintenance.QueueWorkers,
		MaxRetries: cfg.Maintenance.QueueRetries,
		RetryDelay: cfg.Maintenance.RetryDelay,
		OnGiveUp: func(job jobs.Job, err error) {
			metricsSvc.OrphanedProof("abandoned")
		},
		Logger: logr,
	})
	cleanupQueue.Start(ctx)
	defer cleanupQueue.Stop()

	if cfg.Maintenance.SweepSchedule != "" {
		scheduler, err := janitor.Schedule(ctx, cfg.Maintenance.SweepSchedule)
		if err != nil {
			logr.Fatal("invalid sweep schedule", zap.String("schedule", cfg.Maintenance.SweepSchedule), zap.Error(err))
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:     cfg.JWT.Secret,
		AccessTokenExpiry:     cfg.JWT.Expiration,
		Issuer:                cfg.JWT.Issuer,
		DisableEmployeeSignup: !cfg.JWT.EmployeeSignup,
	})
	requestSvc := service.NewRequestService(
		requestRepo,
		proofStore,
		storage.NewSignedURLSigner(cfg.Uploads.SignedURLSecret, cfg.Uploads.SignedURLTTL),
		cleanupQueue,
		cacheSvc,
		metricsSvc,
		validate,
		logr,
		service.RequestServiceConfig{
			MaxFileBytes: cfg.Uploads.MaxFileBytes,
			AllowedExts:  cfg.Uploads.AllowedExts,
			AllowedMIMEs: cfg.Uploads.AllowedMIMEs,
		},
	)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheSvc, logr, service.AnalyticsConfig{
		MonthWindow: cfg.Analytics.MonthWindow,
		CacheTTL:    cfg.Analytics.CacheTTL,
	})
	reportSvc := service.NewReportService(requestRepo, metricsSvc, logr, service.ReportConfig{
		Title:    cfg.Reports.Title,
		Location: reportLocation,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	requestHandler := handler.NewRequestHandler(requestSvc, cfg.APIPrefix, cfg.Uploads.MaxFileBytes, reportLocation)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	reportHandler := handler.NewReportHandler(reportSvc, reportLocation)

	checks := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(cache.HealthCheck(redisClient))
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc, "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)
	// The signed token authorises the download on its own so links work without a header.
	api.GET("/requests/:id/proof/download", requestHandler.ProofDownload)

	secured := api.Group("", middleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/requests", requestHandler.List)
	secured.GET("/requests/:id", requestHandler.Get)
	secured.GET("/requests/:id/proof", requestHandler.ProofURL)
	secured.POST("/requests", middleware.RequireRoles(models.RoleStudent), requestHandler.Submit)
	secured.PATCH("/requests/:id/status", middleware.RequireRoles(models.RoleEmployee), requestHandler.Transition)
	secured.GET("/analytics/requests", analyticsHandler.Requests)
	secured.GET("/reports/requests", middleware.RequireRoles(models.RoleEmployee), reportHandler.Export)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
