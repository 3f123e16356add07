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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/qr-attendance-api/api/swagger"
	"github.com/noah-isme/qr-attendance-api/internal/handler"
	internalmiddleware "github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/repository"
	"github.com/noah-isme/qr-attendance-api/internal/router"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/pkg/cache"
	"github.com/noah-isme/qr-attendance-api/pkg/config"
	"github.com/noah-isme/qr-attendance-api/pkg/database"
	"github.com/noah-isme/qr-attendance-api/pkg/jobs"
	"github.com/noah-isme/qr-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/qr-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/qr-attendance-api/pkg/middleware/requestid"
)

// @title QR Attendance API
// @version 1.0.0
// @description Records student QR check-ins and reconciles them against the class and bus roster.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	location, err := cfg.Attendance.Location()
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Attendance.Timezone, err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.EnsureSchema(ctx, db); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Attendance.StatusCacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("status cache disabled, redis unreachable", zap.Error(err))
			redisClient = nil
		}
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Attendance.StatusCacheTTL, logr, redisClient != nil)

	invalidations := jobs.NewQueue("status-invalidation", service.NewStatusInvalidationHandler(cacheSvc, logr), jobs.QueueConfig{
		Workers:    cfg.Attendance.InvalidationWorker,
		MaxRetries: 2,
		Logger:     logr,
	})
	invalidations.Start(ctx)
	defer invalidations.Stop()

	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	adminRepo := repository.NewAdminRepository(db)

	attendanceSvc := service.NewAttendanceService(service.AttendanceServiceParams{
		Events:    attendanceRepo,
		Roster:    studentRepo,
		Cache:     cacheSvc,
		Queue:     invalidations,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
		Config: service.AttendanceServiceConfig{
			Location:       location,
			StorageTimeout: cfg.Attendance.StorageTimeout,
			StatusCacheTTL: cfg.Attendance.StatusCacheTTL,
		},
	})
	studentSvc := service.NewStudentService(studentRepo, cacheSvc, metricsSvc, validate, logr, cfg.Attendance.StorageTimeout)
	exportSvc := service.NewExportService(attendanceSvc, location, logr)
	authSvc := service.NewAuthService(adminRepo, validate, logr, service.AuthConfig{
		Secret: cfg.JWT.Secret,
		Expiry: cfg.JWT.Expiration,
	})

	if created, err := authSvc.EnsureDefaultAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	} else if created {
		logr.Info("default admin created", zap.String("username", cfg.Admin.Username))
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics"))
	r.Use(internalmiddleware.WithResponseMeta())

	router.Register(r, router.Options{
		APIPrefix:    cfg.APIPrefix,
		EnableDocs:   cfg.Env != config.EnvProduction,
		PublicPortal: cfg.PublicPortal,
		Tokens:       authSvc,
	}, router.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Students:   handler.NewStudentHandler(studentSvc),
		Attendance: handler.NewAttendanceHandler(attendanceSvc),
		Export:     handler.NewExportHandler(exportSvc),
		Metrics:    handler.NewMetricsHandler(metricsSvc, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("timezone", location.String()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
