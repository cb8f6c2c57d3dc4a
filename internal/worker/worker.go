// Package worker runs the long-lived loop that drains the job queue and
// executes the pipeline. Multiple workers may run against the same queue;
// the store guarantees single delivery of each job.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alexvand/supportcrew/internal/store"
	"github.com/alexvand/supportcrew/pkg/models"
)

const (
	dequeueBlock = 5 * time.Second
	errorBackoff = time.Second
)

// Pipeline is what the worker executes per job. Satisfied by *pipeline.Engine.
type Pipeline interface {
	Run(ctx context.Context, inputs models.JobInputs) (string, error)
}

// Worker pulls jobs, executes the pipeline, and writes terminal state back.
type Worker struct {
	store      store.Store
	pipeline   Pipeline
	jobTimeout time.Duration
}

// New creates a Worker. jobTimeout is the wall-clock bound on one pipeline
// run; runs exceeding it are force-failed.
func New(st store.Store, p Pipeline, jobTimeout time.Duration) *Worker {
	return &Worker{store: st, pipeline: p, jobTimeout: jobTimeout}
}

// Start blocks, processing jobs until ctx is cancelled. A job failure never
// stops the loop; the worker proceeds to its next dequeue.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("worker started", "job_timeout", w.jobTimeout)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker shutting down")
			return
		default:
		}

		job, ok, err := w.store.Dequeue(ctx, dequeueBlock)
		if err != nil {
			if ctx.Err() != nil {
				slog.Info("worker shutting down")
				return
			}
			slog.Error("dequeue failed", "error", err)
			select {
			case <-time.After(errorBackoff):
			case <-ctx.Done():
			}
			continue
		}
		if !ok {
			continue
		}

		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job *models.Job) {
	slog.Info("job started", "job_id", job.ID)
	start := time.Now()

	if err := w.store.MarkProcessing(ctx, job.ID); err != nil {
		slog.Error("marking job processing failed", "job_id", job.ID, "error", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, w.jobTimeout)
	defer cancel()

	result, err := w.runPipeline(runCtx, job.Inputs)

	// Terminal writes must land even when runCtx is already dead.
	writeCtx := context.Background()
	if err != nil {
		slog.Error("job failed",
			"job_id", job.ID, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		if serr := w.store.Fail(writeCtx, job.ID, err.Error()); serr != nil {
			slog.Error("recording job failure failed", "job_id", job.ID, "error", serr)
		}
		return
	}

	if serr := w.store.Complete(writeCtx, job.ID, result); serr != nil {
		slog.Error("recording job result failed", "job_id", job.ID, "error", serr)
		return
	}
	slog.Info("job completed",
		"job_id", job.ID, "result_len", len(result), "elapsed_ms", time.Since(start).Milliseconds())
}

// runPipeline isolates panics so one bad run cannot kill the worker process.
func (w *Worker) runPipeline(ctx context.Context, inputs models.JobInputs) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.pipeline.Run(ctx, inputs)
}
