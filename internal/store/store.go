// Package store implements the Job Store and work queue on Redis. The job
// record lives in a hash keyed by job id; the queue is a Redis list of job
// ids, moved to an active list while a worker holds them.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/alexvand/supportcrew/pkg/models"
)

// ErrJobNotFound is returned when a job id has no record in the store.
var ErrJobNotFound = errors.New("job not found")

// Store is the job persistence and queueing interface. The Redis
// implementation is the single source of truth for job state; all access
// goes through atomic per-key operations, so implementations must be safe
// for concurrent use.
type Store interface {
	// Enqueue records a new job in state queued and appends it to the work
	// queue. It never runs the pipeline inline.
	Enqueue(ctx context.Context, inputs models.JobInputs) (*models.Job, error)
	// Dequeue blocks up to the given duration for the next job. The returned
	// bool is false when no job arrived in the window. A dequeued job is
	// delivered to exactly one caller under normal operation.
	Dequeue(ctx context.Context, block time.Duration) (*models.Job, bool, error)
	// MarkProcessing transitions the job to processing and stamps started_at.
	MarkProcessing(ctx context.Context, jobID string) error
	// Complete writes the terminal completed state with the final result.
	Complete(ctx context.Context, jobID, result string) error
	// Fail writes the terminal failed state with an error description.
	Fail(ctx context.Context, jobID, errMsg string) error
	// GetJob returns a point-in-time snapshot, or ErrJobNotFound.
	GetJob(ctx context.Context, jobID string) (*models.Job, error)

	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	Ping(ctx context.Context) error
}
