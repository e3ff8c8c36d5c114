package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/jwt-pizza/pizza-service/internal/jobs"
)

type stubPruner struct {
	removed int64
	err     error
	cutoff  time.Time
}

func (s *stubPruner) PruneExpired(_ context.Context, now time.Time) (int64, error) {
	s.cutoff = now
	return s.removed, s.err
}

type stubCleaner struct {
	retention time.Duration
	err       error
}

func (s *stubCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.retention = olderThan
	return 2, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionsPruneJobUsesClock(t *testing.T) {
	pruner := &stubPruner{removed: 4}
	job := NewSessionsPruneJob(pruner, discardLogger(), jobmetrics.NewMetrics(prometheus.NewRegistry()))
	fixed := time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC)
	job.clock = func() time.Time { return fixed }

	require.NoError(t, job.Handle(context.Background(), NewSessionsPruneTask()))
	assert.Equal(t, fixed, pruner.cutoff)
}

func TestSessionsPruneJobPropagatesFailure(t *testing.T) {
	boom := errors.New("db down")
	job := NewSessionsPruneJob(&stubPruner{err: boom}, discardLogger(), nil)

	assert.ErrorIs(t, job.Handle(context.Background(), NewSessionsPruneTask()), boom)

	var unset *SessionsPruneJob
	assert.Error(t, unset.Handle(context.Background(), NewSessionsPruneTask()))
}

func TestIdempotencyCleanupJob(t *testing.T) {
	cleaner := &stubCleaner{}
	job := &IdempotencyCleanupJob{Cleaner: cleaner, Logger: discardLogger()}

	task, err := NewIdempotencyCleanupTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, 48*time.Hour, cleaner.retention)

	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte(`{}`))))
	assert.Equal(t, 24*time.Hour, cleaner.retention)

	assert.ErrorIs(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, []byte(`{`))), asynq.SkipRetry)
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	_, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Logger:    discardLogger(),
		Cron:      []CronRegistration{{Spec: "not a cron", Task: NewSessionsPruneTask()}},
	})
	assert.Error(t, err)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, discardLogger()).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "default", body["queue"])
	assert.Equal(t, float64(0), body["pending"])
}
