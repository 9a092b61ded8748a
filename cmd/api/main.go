package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/studio-asistencia-api/api/swagger"
	"github.com/noah-isme/studio-asistencia-api/internal/handler"
	"github.com/noah-isme/studio-asistencia-api/internal/middleware"
	"github.com/noah-isme/studio-asistencia-api/internal/repository"
	"github.com/noah-isme/studio-asistencia-api/internal/service"
	"github.com/noah-isme/studio-asistencia-api/pkg/cache"
	"github.com/noah-isme/studio-asistencia-api/pkg/config"
	"github.com/noah-isme/studio-asistencia-api/pkg/database"
	"github.com/noah-isme/studio-asistencia-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/studio-asistencia-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/studio-asistencia-api/pkg/middleware/requestid"
	"github.com/noah-isme/studio-asistencia-api/pkg/storage"
)

// @title Studio Asistencia API
// @version 1.0.0
// @description Recurring verification and reconciliation engine for studio class attendance
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect redis", "error", err)
	}
	defer redisClient.Close()

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	loc, err := time.LoadLocation(cfg.Verification.Timezone)
	if err != nil {
		logr.Sugar().Warnw("invalid verification timezone, falling back to local", "timezone", cfg.Verification.Timezone)
		loc = time.Local
	}

	validate := validator.New()

	verificationRepo := repository.NewVerificationRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	sourceRepo := repository.NewSourceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	verificationSvc := service.NewVerificationService(verificationRepo, enrollmentRepo, cacheRepo, metricsSvc, validate, logr, cfg.Verification)
	checkinSvc := service.NewCheckinService(enrollmentRepo, verificationRepo, cacheRepo, metricsSvc, validate, logr, loc)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, sourceRepo, cacheRepo, validate, logr, loc, cfg.Admin.SecretHash)
	exportSvc := service.NewExportService(verificationRepo, exportStorage, exportSigner, validate, logr, loc)

	verificationHandler := handler.NewVerificationHandler(verificationSvc)
	checkinHandler := handler.NewCheckinHandler(checkinSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	exportHandler := handler.NewExportHandler(exportSvc, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unavailable"})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "cache unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Download auth is the signed token itself, so the route stays outside
	// the JWT group.
	r.GET(cfg.APIPrefix+"/exports/download", exportHandler.Download)

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(cfg.JWT.Secret))
	{
		api.GET("/verificaciones/resumen", verificationHandler.Summary)
		api.POST("/verificaciones/ejecutar", verificationHandler.Execute)
		api.GET("/verificaciones", verificationHandler.History)
		api.DELETE("/verificaciones/:id", verificationHandler.Undo)
		api.POST("/verificaciones/export", exportHandler.Export)

		api.POST("/checkin", checkinHandler.Checkin)

		api.GET("/enrollments", enrollmentHandler.List)
		api.POST("/enrollments/reconciliar", enrollmentHandler.Reconcile)
		api.POST("/enrollments/:clientId/:activity/regularizar", enrollmentHandler.Regularize)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Info("server starting", zap.String("addr", addr), zap.String("env", cfg.Env))
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
