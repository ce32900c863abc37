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

	_ "github.com/schoolyard-io/timetable-api/api/swagger"
	"github.com/schoolyard-io/timetable-api/internal/handler"
	"github.com/schoolyard-io/timetable-api/internal/middleware"
	"github.com/schoolyard-io/timetable-api/internal/models"
	"github.com/schoolyard-io/timetable-api/internal/repository"
	"github.com/schoolyard-io/timetable-api/internal/service"
	"github.com/schoolyard-io/timetable-api/pkg/cache"
	"github.com/schoolyard-io/timetable-api/pkg/config"
	"github.com/schoolyard-io/timetable-api/pkg/database"
	"github.com/schoolyard-io/timetable-api/pkg/logger"
	corsmiddleware "github.com/schoolyard-io/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schoolyard-io/timetable-api/pkg/middleware/requestid"
	"github.com/schoolyard-io/timetable-api/pkg/storage"
)

// @title Timetable API
// @version 1.0.0
// @description School timetable construction and teacher assignment service
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	timetableRepo := repository.NewTimetableRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	templateRepo := repository.NewTemplateRepository(db)
	rosterRepo := repository.NewRosterRepository(db)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()
	assignmentSvc := service.NewAssignmentService(assignmentRepo, periodRepo, timetableRepo, rosterRepo, cacheRepo, metricsSvc, validate, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, periodRepo, assignmentRepo, rosterRepo, cacheRepo, metricsSvc, cfg.Grid.CacheTTL, validate, logr)
	templateSvc := service.NewTemplateService(templateRepo, timetableRepo, periodRepo, assignmentRepo, rosterRepo, assignmentSvc, metricsSvc, cfg.Templates.KeepTeachers, validate, logr)
	cloneSvc := service.NewCloneService(timetableRepo, periodRepo, assignmentRepo, rosterRepo, assignmentSvc, metricsSvc, validate, logr)

	var exportSvc *service.ExportService
	if cfg.Export.Enabled {
		exportDir, err := storage.NewLocalStorage(cfg.Export.Dir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Export.URLTTL)
		exportSvc = service.NewExportService(timetableSvc, timetableRepo, cacheRepo, exportDir, signer, cfg.Export.Workers, cfg.Export.URLTTL, metricsSvc, logr)
		exportSvc.Start(context.Background())
		defer exportSvc.Stop()
	}

	timetableHandler := handler.NewTimetableHandler(timetableSvc, cloneSvc)
	assignmentHandler := handler.NewAssignmentHandler(assignmentSvc)
	templateHandler := handler.NewTemplateHandler(templateSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
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
	api.Use(middleware.JWT(cfg.JWT.Secret))
	editors := middleware.RequireRoles(models.RoleAdmin, models.RoleStaff)

	api.GET("/timetables", timetableHandler.List)
	api.POST("/timetables", editors, timetableHandler.Create)
	api.GET("/timetables/:id/grid", timetableHandler.Grid)
	api.DELETE("/timetables/:id", editors, timetableHandler.Delete)
	api.GET("/classes/:id/grid", timetableHandler.GridByClass)

	api.PUT("/periods/:id/time", editors, timetableHandler.UpdatePeriodTime)
	api.DELETE("/periods/:id", editors, timetableHandler.DeletePeriod)

	api.GET("/assignments", assignmentHandler.List)
	api.GET("/teachers/:id/assignments", assignmentHandler.ListByTeacher)
	api.POST("/periods/:id/assignment", editors, assignmentHandler.Assign)
	api.PUT("/periods/:id/assignment", editors, assignmentHandler.Reassign)
	api.DELETE("/periods/:id/assignment", editors, assignmentHandler.Unassign)

	if cfg.Templates.Enabled {
		api.GET("/templates", templateHandler.List)
		api.POST("/templates", editors, templateHandler.Save)
		api.POST("/templates/:id/apply", editors, templateHandler.Apply)
		api.DELETE("/templates/:id", editors, templateHandler.Delete)
	}
	if cfg.Clone.Enabled {
		api.POST("/timetables/:id/clone", editors, timetableHandler.Clone)
	}
	if exportSvc != nil {
		exportHandler := handler.NewExportHandler(exportSvc)
		api.POST("/timetables/:id/export", exportHandler.Request)
		api.GET("/exports/:id", exportHandler.Status)
		// download is token-authenticated, not JWT-authenticated
		r.GET("/exports/download", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
