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
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/smallgroups-admin-api/api/swagger"
	"github.com/noah-isme/smallgroups-admin-api/internal/handler"
	"github.com/noah-isme/smallgroups-admin-api/internal/middleware"
	"github.com/noah-isme/smallgroups-admin-api/internal/repository"
	"github.com/noah-isme/smallgroups-admin-api/internal/service"
	"github.com/noah-isme/smallgroups-admin-api/pkg/cache"
	"github.com/noah-isme/smallgroups-admin-api/pkg/config"
	"github.com/noah-isme/smallgroups-admin-api/pkg/database"
	"github.com/noah-isme/smallgroups-admin-api/pkg/jobs"
	"github.com/noah-isme/smallgroups-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/smallgroups-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/smallgroups-admin-api/pkg/middleware/requestid"
	"github.com/noah-isme/smallgroups-admin-api/pkg/storage"
)

// @title Small Groups Admin API
// @version 1.0.0
// @description Administration, attendance and analytics for small-group ministries
// @BasePath /api/v1
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
	defer logger.Flush(2 * time.Second)
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		logr.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis, logr)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	var (
		cacheRepo  service.CacheRepository
		redisCache *repository.CacheRepository
	)
	if redisClient != nil {
		redisCache = repository.NewCacheRepository(redisClient, "smallgroups", logr)
		cacheRepo = redisCache
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Analytics.CacheTTL, logr, cfg.Analytics.CacheEnabled)

	users := repository.NewUserRepository(db)
	territories := repository.NewTerritoryRepository(db)
	groups := repository.NewGroupRepository(db)
	meetings := repository.NewMeetingRepository(db)
	marks := repository.NewAttendanceRepository(db)
	bethels := repository.NewBethelRepository(db)
	exportJobs := repository.NewExportJobRepository(db)

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "smallgroups-admin-api",
	})
	accountSvc := service.NewAccountService(users, territories, cacheSvc, validate, logr)
	territorySvc := service.NewTerritoryService(territories, users, cacheSvc, validate, logr)
	groupSvc := service.NewGroupService(groups, users, cacheSvc, validate, logr)
	meetingSvc := service.NewMeetingService(groups, meetings, marks, cacheSvc, validate, logr)
	bethelSvc := service.NewBethelService(bethels, groups, users, cacheSvc, validate, logr)

	analyticsSvc := service.NewAnalyticsService(service.AnalyticsServiceParams{
		Territories: territories,
		Groups:      groups,
		Meetings:    meetings,
		Marks:       marks,
		Directory:   users,
		Bethels:     bethels,
		Cache:       cacheSvc,
		Metrics:     metrics,
		Logger:      logr,
		CacheTTL:    cfg.Analytics.CacheTTL,
		Concurrency: cfg.Analytics.Workers,
		DefaultTop:  cfg.Analytics.DefaultTopN,
	})
	defer analyticsSvc.Close()

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Roles:        users,
		Territories:  territories,
		Distribution: territories,
		Groups:       groups,
		GroupCounter: groups,
		Bethels:      bethels,
		Meetings:     meetings,
		Marks:        marks,
		Cache:        cacheSvc,
		Metrics:      metrics,
		Logger:       logr,
		Config: service.DashboardServiceConfig{
			CacheTTL:    cfg.Dashboard.CacheTTL,
			Concurrency: cfg.Analytics.Workers,
		},
	})
	defer dashboardSvc.Close()

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("export storage unavailable", zap.Error(err))
	}
	exporter := service.NewExportService(
		analyticsSvc,
		exportStore,
		storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL),
		service.ExportConfig{APIPrefix: cfg.APIPrefix, ResultTTL: cfg.Exports.SignedURLTTL},
		logr,
		nil, nil,
	)
	worker := service.NewReportWorker(exportJobs, exporter, metrics, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		OnFailure:  worker.Fail,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	reportSvc := service.NewReportService(exportJobs, queue, exporter, validate, logr, service.ReportServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
	})
	reportSvc.RecoverPendingJobs(ctx)
	reportSvc.StartCleanup(ctx)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))
	r.Use(middleware.WithResponseMeta())

	registerRoutes(r, cfg, routeDeps{
		auth:       authSvc,
		audits:     users,
		logger:     logr,
		authH:      handler.NewAuthHandler(authSvc),
		accountH:   handler.NewAccountHandler(accountSvc),
		territoryH: handler.NewTerritoryHandler(territorySvc),
		groupH:     handler.NewGroupHandler(groupSvc),
		leaderH:    handler.NewLeaderHandler(meetingSvc),
		bethelH:    handler.NewBethelHandler(bethelSvc),
		analyticsH: handler.NewAnalyticsHandler(analyticsSvc),
		dashboardH: handler.NewDashboardHandler(dashboardSvc),
		exportH:    handler.NewExportHandler(reportSvc),
		metricsH:   handler.NewMetricsHandler(metrics, readinessChecks(db.PingContext, redisCache)),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}

func readinessChecks(dbPing handler.ReadinessCheck, redisCache *repository.CacheRepository) map[string]handler.ReadinessCheck {
	checks := map[string]handler.ReadinessCheck{"database": dbPing}
	if redisCache != nil {
		checks["redis"] = redisCache.Ping
	}
	return checks
}
