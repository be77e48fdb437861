// Package jobs runs the catalog sync jobs on asynq: scheduled by cron specs
// in the worker and enqueued on demand by the api.
package jobs

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"
)

const (
	TypeCatalogSync         = "catalog:sync"
	TypePriceSync           = "catalog:prices"
	TypeFingerprintBackfill = "catalog:fingerprints"

	// DefaultBackfillLimit is how many images one backfill run hashes.
	DefaultBackfillLimit = 500
)

var ErrUnknownJob = errors.New("unknown job")

// Job names accepted by Enqueue, as used in the api path and the CLI.
const (
	JobCatalog      = "catalog"
	JobPrices       = "prices"
	JobFingerprints = "fingerprints"
)

type BackfillPayload struct {
	Limit int `json:"limit"`
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewTask builds the task for a job name.
func NewTask(job string) (*asynq.Task, error) {
	switch job {
	case JobCatalog:
		return asynq.NewTask(TypeCatalogSync, nil), nil
	case JobPrices:
		return asynq.NewTask(TypePriceSync, nil), nil
	case JobFingerprints:
		return NewBackfillTask(DefaultBackfillLimit)
	}
	return nil, errors.Wrapf(ErrUnknownJob, "%q", job)
}

// NewBackfillTask is the fingerprint backfill task for at most limit entries.
func NewBackfillTask(limit int) (*asynq.Task, error) {
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}
	data, err := json.Marshal(BackfillPayload{Limit: limit})
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}
	return asynq.NewTask(TypeFingerprintBackfill, data), nil
}

// taskOptions: a sync already queued or running is not queued again.
func taskOptions() []asynq.Option {
	return []asynq.Option{
		asynq.MaxRetry(3),
		asynq.Timeout(2 * time.Hour),
		asynq.Unique(2 * time.Hour),
	}
}

// Enqueue queues a sync job by name.
func Enqueue(ctx context.Context, q Enqueuer, job string) (*asynq.TaskInfo, error) {
	task, err := NewTask(job)
	if err != nil {
		return nil, err
	}
	return EnqueueTask(ctx, q, task)
}

func EnqueueTask(ctx context.Context, q Enqueuer, task *asynq.Task) (*asynq.TaskInfo, error) {
	info, err := q.EnqueueContext(ctx, task, taskOptions()...)
	if err != nil {
		return nil, errors.Wrapf(err, "enqueue %s", task.Type())
	}
	return info, nil
}
