package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/barberia/backoffice/internal/app"
	jobmetrics "github.com/barberia/backoffice/internal/jobs"
	"github.com/barberia/backoffice/internal/observability"
	"github.com/barberia/backoffice/internal/platform/cache"
	"github.com/barberia/backoffice/internal/platform/db"
	"github.com/barberia/backoffice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg).With(slog.String("process", "worker"))
	slog.SetDefault(logger)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.DBOptions()...)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	services, err := app.NewServices(app.Deps{Config: cfg, Logger: logger, Pool: pool, Redis: redisClient, Metrics: metrics})
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		os.Exit(1)
	}
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())
	loc, _ := cfg.Location()

	scanJob := jobs.NewLowStockScanJob(services.Inventory, services.Dashboard, logger, jobMetrics)
	warmupJob := jobs.NewDashboardWarmupJob(services.Dashboard, logger, jobMetrics)

	scanTask, err := jobs.NewLowStockScanTask(jobs.LowStockScanPayload{})
	if err != nil {
		logger.Error("build low stock task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewDashboardWarmupTask(jobs.DashboardWarmupPayload{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		Redis:       cfg.QueueRedis(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Location:    loc,
		Jobs: []jobs.Job{
			{Type: jobs.TaskLowStockScan, Handler: scanJob.Handle, Cron: cfg.LowStockCron, Task: scanTask},
			{Type: jobs.TaskDashboardWarmup, Handler: warmupJob.Handle, Cron: cfg.DashboardCron, Task: warmupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started", slog.String("low_stock_cron", cfg.LowStockCron), slog.String("dashboard_cron", cfg.DashboardCron))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
