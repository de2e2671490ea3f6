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
	"go.uber.org/zap"

	"github.com/noah-isme/team-registry-api/internal/handler"
	"github.com/noah-isme/team-registry-api/internal/middleware"
	"github.com/noah-isme/team-registry-api/internal/models"
	"github.com/noah-isme/team-registry-api/internal/repository"
	"github.com/noah-isme/team-registry-api/internal/service"
	"github.com/noah-isme/team-registry-api/pkg/cache"
	"github.com/noah-isme/team-registry-api/pkg/config"
	"github.com/noah-isme/team-registry-api/pkg/database"
	"github.com/noah-isme/team-registry-api/pkg/logger"
	reqidmiddleware "github.com/noah-isme/team-registry-api/pkg/middleware/requestid"
	"github.com/noah-isme/team-registry-api/pkg/pagination"
)

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		return err
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	isolation, err := database.ParseIsolation(cfg.Transactions.Isolation)
	if err != nil {
		return err
	}

	codec, err := pagination.NewCodec[models.TeamQuery](cfg.Pagination.CursorSecret)
	if err != nil {
		return err
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	runner := database.NewTxRunner(db, database.TxConfig{
		Isolation:  isolation,
		RetryDelay: cfg.Transactions.RetryDelay,
		Logger:     logr,
		Observer:   metricsSvc,
	})

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	pageCache := service.NewPageCache(cacheRepo, metricsSvc, service.TeamPageNamespace, cfg.Pagination.CacheTTL, logr, redisClient != nil && cfg.Pagination.CacheEnabled)

	teamRepo := repository.NewTeamRepository(db)
	bankRepo := repository.NewBankRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	statRepo := repository.NewStatisticRepository(db)

	teamSvc := service.NewTeamService(teamRepo, bankRepo, runner, codec, pageCache, metricsSvc, validate, logr, service.TeamServiceConfig{
		DefaultLimit: cfg.Pagination.DefaultLimit,
		MaxLimit:     cfg.Pagination.MaxLimit,
		MaxAttempts:  cfg.Transactions.MaxAttempts,
	})
	catalogSvc := service.NewCatalogService(bankRepo, taskRepo, runner, pageCache, validate, logr, cfg.Transactions.MaxAttempts)
	ingestSvc := service.NewStatisticIngestService(statRepo, runner, pageCache, metricsSvc, validate, logr, service.StatisticIngestConfig{
		Workers:    cfg.Ingest.Workers,
		BufferSize: cfg.Ingest.BufferSize,
		MaxRetries: cfg.Ingest.MaxRetries,
		RetryDelay: cfg.Ingest.RetryDelay,
	})
	// Workers outlive the signal context so batches accepted during shutdown still get written.
	ingestSvc.Start(context.Background())
	defer ingestSvc.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(middleware.Metrics(metricsSvc))

	ops := handler.NewMetricsHandler(metricsSvc, db)
	if redisClient != nil {
		ops.WithCache(cacheRepo)
	}
	r.GET("/health", ops.Health)
	r.GET("/ready", ops.Ready)
	r.GET("/metrics", ops.Prometheus)
	r.GET("/metrics/summary", ops.Summary)

	handler.NewTeamHandler(teamSvc, ingestSvc, catalogSvc).Register(r.Group("/api/v1"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
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
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := ingestSvc.Drain(shutdownCtx); err != nil {
		logr.Warn("statistic batches discarded at shutdown", zap.Error(err))
	}
	return nil
}
