package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsPrune removes expired session records.
	TaskSessionsPrune = "auth:sessions:prune"
	// TaskIdempotencyCleanup removes stale order idempotency keys.
	TaskIdempotencyCleanup = "order:idempotency:cleanup"
)

// IdempotencyCleanupPayload sets how long keys are kept.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewSessionsPruneTask constructs the prune task. It carries no payload; the
// cutoff is the handler's clock.
func NewSessionsPruneTask() *asynq.Task {
	return asynq.NewTask(TaskSessionsPrune, nil)
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
