package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/shopledger/shopledger/internal/analytics"
	"github.com/shopledger/shopledger/internal/app"
	"github.com/shopledger/shopledger/internal/auth"
	"github.com/shopledger/shopledger/internal/billing"
	"github.com/shopledger/shopledger/internal/catalog"
	"github.com/shopledger/shopledger/internal/platform/cache"
	"github.com/shopledger/shopledger/internal/platform/db"
	"github.com/shopledger/shopledger/internal/shared"
	"github.com/shopledger/shopledger/internal/stock"
	"github.com/shopledger/shopledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis connect", slog.Any("error", err))
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	authMiddleware := auth.New()
	auditLogger := shared.NewAuditLogger(pool)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(logger, stockRepo, auditLogger)
	stockHandler := stock.NewHandler(logger, stockService, authMiddleware)

	analyticsCache := analytics.NewCache(redisClient, cfg.PredictionTTL)
	analyticsRepo := analytics.NewRepository(pool)
	analyticsService := analytics.NewService(analyticsRepo, stockRepo, analyticsCache)
	analyticsHandler := analytics.NewHandler(logger, analyticsService, authMiddleware)

	billingRepo := billing.NewRepository(pool)
	billingService := billing.NewService(logger, billingRepo, auditLogger, idempotencyStore, analyticsCache, billing.TaxRates{
		CGSTPercent: cfg.CGSTRate,
		SGSTPercent: cfg.SGSTRate,
	})
	billingHandler := billing.NewHandler(logger, billingService, authMiddleware)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(logger, catalogRepo, auditLogger)
	catalogHandler := catalog.NewHandler(logger, catalogService, authMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Auth:             authMiddleware,
		CatalogHandler:   catalogHandler,
		StockHandler:     stockHandler,
		BillingHandler:   billingHandler,
		AnalyticsHandler: analyticsHandler,
		JobHandler:       jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
