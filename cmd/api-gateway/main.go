package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/subdesk-api/api/swagger"
	"github.com/noah-isme/subdesk-api/internal/handler"
	"github.com/noah-isme/subdesk-api/internal/middleware"
	"github.com/noah-isme/subdesk-api/internal/repository"
	"github.com/noah-isme/subdesk-api/internal/schedule"
	"github.com/noah-isme/subdesk-api/internal/service"
	"github.com/noah-isme/subdesk-api/pkg/cache"
	"github.com/noah-isme/subdesk-api/pkg/config"
	"github.com/noah-isme/subdesk-api/pkg/database"
	"github.com/noah-isme/subdesk-api/pkg/export"
	"github.com/noah-isme/subdesk-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/subdesk-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/subdesk-api/pkg/middleware/requestid"
	"github.com/noah-isme/subdesk-api/pkg/storage"
)

// @title Subdesk API
// @version 0.1.0
// @description Substitute teacher availability ranking and assignment log
// @BasePath /
// @schemes http

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

	// The schedule is the source of truth for the whole process lifetime;
	// a malformed document means we must not start serving.
	model, err := schedule.Load(cfg.Schedule.File)
	if err != nil {
		logr.Sugar().Fatalw("failed to load schedule", "file", cfg.Schedule.File, "error", err)
	}
	logr.Sugar().Infow("schedule loaded",
		"file", cfg.Schedule.File,
		"days", len(model.Days()),
		"periods", len(model.Periods()),
		"teachers", len(model.TeacherNames()),
	)

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	if err := repository.EnsureSchema(context.Background(), db); err != nil {
		logr.Sugar().Fatalw("failed to apply schema", "error", err)
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, availability responses will not be cached", zap.Error(err))
		redisClient = nil
	}

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare exports directory", "error", err)
	}

	validate := validator.New()
	csvExporter := export.NewCSVExporter()
	pdfExporter := export.NewPDFExporter()

	assignmentRepo := repository.NewAssignmentRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	settingsSvc := service.NewSettingsService(settingsRepo, validate, logr)
	availabilitySvc := service.NewAvailabilityService(model, assignmentRepo, cacheRepo, metricsSvc, logr, cfg.Availability.CacheTTL)
	assignmentSvc := service.NewAssignmentService(assignmentRepo, settingsSvc, model, cacheRepo, exportStorage, csvExporter, validate, logr, cfg.Exports.SnapshotFile)
	historySvc := service.NewHistoryService(assignmentRepo, model, csvExporter, pdfExporter, logr)

	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	historyHandler := handler.NewHistoryHandler(historySvc)
	settingsHandler := handler.NewSettingsHandler(settingsSvc)
	scheduleHandler := handler.NewScheduleHandler(model)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/availability", availabilityHandler.Rank)
		api.GET("/schedule", scheduleHandler.Meta)
		api.GET("/schedule/routine", scheduleHandler.Routine)
		api.POST("/assignments", assignmentHandler.Record)
		api.GET("/assignments", historyHandler.List)
		api.GET("/assignments/export", historyHandler.Export)
		api.GET("/settings", settingsHandler.Get)
		api.PUT("/settings", settingsHandler.Update)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
