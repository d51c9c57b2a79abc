package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/student-clearance-api/api/swagger"
	"github.com/noah-isme/student-clearance-api/internal/handler"
	"github.com/noah-isme/student-clearance-api/internal/middleware"
	"github.com/noah-isme/student-clearance-api/internal/repository"
	"github.com/noah-isme/student-clearance-api/internal/service"
	"github.com/noah-isme/student-clearance-api/pkg/cache"
	"github.com/noah-isme/student-clearance-api/pkg/config"
	"github.com/noah-isme/student-clearance-api/pkg/database"
	"github.com/noah-isme/student-clearance-api/pkg/export"
	"github.com/noah-isme/student-clearance-api/pkg/jobs"
	"github.com/noah-isme/student-clearance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/student-clearance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/student-clearance-api/pkg/middleware/requestid"
	"github.com/noah-isme/student-clearance-api/pkg/password"
	"github.com/noah-isme/student-clearance-api/pkg/storage"
)

// @title Student Clearance API
// @version 1.0.0
// @description Student clearance request tracking, registration and password reset
// @BasePath /api
// @schemes http https
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Stats.CacheEnabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, stats cache disabled", zap.Error(err))
		}
	}

	media, err := storage.NewLocalStorage(cfg.Media.Root)
	if err != nil {
		logr.Fatal("failed to prepare media root", zap.Error(err))
	}
	logr.Info("media storage ready", zap.String("root", media.Root()), zap.String("url", cfg.Media.URL))

	cleanup := jobs.NewQueue("artifact-cleanup", service.ArtifactRemovalHandler(media), jobs.QueueConfig{
		Workers:    2,
		MaxRetries: 3,
		RetryDelay: 2 * time.Second,
		Logger:     logr,
	})
	cleanup.Start(ctx)

	router := buildRouter(cfg, logr, db, redisClient, media, cleanup)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	cleanup.Stop()
	if redisClient != nil {
		_ = redisClient.Close()
	}
	logr.Info("server stopped")
}

func buildRouter(cfg *config.Config, logr *zap.Logger, db *sqlx.DB, redisClient *redis.Client, media *storage.LocalStorage, cleanup *jobs.Queue) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	validate := service.NewValidator()
	metrics := service.NewMetricsService()
	policy := password.NewPolicy(cfg.Password.MinLength)

	accounts := repository.NewAccountRepository(db)
	requests := repository.NewClearanceRequestRepository(db)
	audit := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "clearance:", logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Stats.CacheTTL, logr, cfg.Stats.CacheEnabled && cacheRepo.Enabled())

	authSvc := service.NewAuthService(accounts, audit, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	registrationSvc := service.NewRegistrationService(accounts, audit, policy, validate, metrics, logr)
	resetSvc := service.NewPasswordResetService(service.NewIdentityVerifier(accounts, validate), accounts, audit, policy, validate, metrics, logr)
	requestSvc := service.NewClearanceRequestService(requests, accounts, media, audit, cacheSvc, metrics, validate, logr, service.ClearanceRequestConfig{
		MediaURL:       cfg.Media.URL,
		MaxUploadBytes: cfg.Media.MaxUploadBytes,
		AllowedMIMEs:   cfg.Media.AllowedMIMEs,
		StatsCacheTTL:  cfg.Stats.CacheTTL,
	}, service.WithArtifactCleanup(cleanup))
	exportSvc := service.NewExportService(requests, logr, export.NewCSVExporter(), export.NewPDFExporter())

	checks := map[string]handler.Pinger{"database": db}
	if cacheRepo.Enabled() {
		checks["redis"] = handler.PingFunc(cacheRepo.Ping)
	}
	metricsHandler := handler.NewMetricsHandler(metrics, checks)

	r := gin.New()
	r.MaxMultipartMemory = cfg.Media.MaxUploadBytes
	r.Use(middleware.Recovery(logr))
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(middleware.Metrics(metrics, "/metrics", "/health", "/ready"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET(path.Join(cfg.Media.URL, "*filepath"), handler.NewMediaHandler(media).Serve)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc, registrationSvc),
		PasswordReset: handler.NewPasswordResetHandler(resetSvc),
		Requests:      handler.NewClearanceRequestHandler(requestSvc, exportSvc),
	}, authSvc)

	return r
}
