package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/jwt-pizza/pizza-service/internal/auth"
	jobmetrics "github.com/jwt-pizza/pizza-service/internal/jobs"
)

// SessionsPruneJob deletes session records whose tokens have expired.
type SessionsPruneJob struct {
	Pruner  auth.SessionPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewSessionsPruneJob initialises the prune handler.
func NewSessionsPruneJob(pruner auth.SessionPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *SessionsPruneJob {
	return &SessionsPruneJob{
		Pruner:  pruner,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes one prune pass.
func (j *SessionsPruneJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Pruner == nil {
		return errors.New("sessions prune: handler not configured")
	}
	tracker := j.Metrics.Track(TaskSessionsPrune)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	start := j.clock()
	removed, err := j.Pruner.PruneExpired(ctx, start)
	if err != nil {
		j.logger().Error("prune sessions", slog.Any("error", err))
		return err
	}
	j.Metrics.AddRemoved(TaskSessionsPrune, removed)
	j.logger().Info("pruned expired sessions",
		slog.Int64("removed", removed),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *SessionsPruneJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

// IdempotencyCleaner deletes idempotency keys older than a retention window.
type IdempotencyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob keeps the idempotency_keys table bounded.
type IdempotencyCleanupJob struct {
	Cleaner IdempotencyCleaner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle executes one cleanup pass.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Cleaner == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		payload.Retention = 24 * time.Hour
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	removed, err := j.Cleaner.Cleanup(ctx, payload.Retention)
	if err != nil {
		return err
	}
	j.Metrics.AddRemoved(TaskIdempotencyCleanup, removed)
	if j.Logger != nil {
		j.Logger.Info("cleaned idempotency keys", slog.Int64("removed", removed))
	}
	return nil
}
