package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/jwt-pizza/pizza-service/internal/app"
	"github.com/jwt-pizza/pizza-service/internal/auth"
	"github.com/jwt-pizza/pizza-service/internal/platform/db"
	"github.com/jwt-pizza/pizza-service/internal/shared"
	"github.com/jwt-pizza/pizza-service/jobs"

	jobmetrics "github.com/jwt-pizza/pizza-service/internal/jobs"
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

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Redis-held sessions expire on their own; pruning covers the Postgres table.
	var pruner auth.SessionPruner = auth.NewPGStore(pool)

	metrics := jobmetrics.NewMetrics(nil)
	pruneJob := jobs.NewSessionsPruneJob(pruner, logger, metrics)
	cleanupJob := &jobs.IdempotencyCleanupJob{Cleaner: shared.NewIdempotencyStore(pool), Logger: logger, Metrics: metrics}

	cleanupTask, err := jobs.NewIdempotencyCleanupTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskSessionsPrune, Handler: pruneJob.Handle},
			{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SessionPruneCron, Task: jobs.NewSessionsPruneTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 3 * * *", Task: cleanupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
