package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alexvand/supportcrew/pkg/models"
)

// Hash field names of a job record.
const (
	fieldStatus     = "status"
	fieldInputs     = "inputs"
	fieldResult     = "result"
	fieldError      = "error"
	fieldEnqueuedAt = "enqueued_at"
	fieldStartedAt  = "started_at"
	fieldEndedAt    = "ended_at"
)

// RedisStore implements Store using go-redis/v9.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore from a Redis URL. The connection is
// constructed here and passed explicitly; there is no process-wide singleton.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) Enqueue(ctx context.Context, inputs models.JobInputs) (*models.Job, error) {
	encoded, err := json.Marshal(inputs)
	if err != nil {
		return nil, fmt.Errorf("encoding inputs: %w", err)
	}

	job := &models.Job{
		ID:         uuid.New().String(),
		Status:     models.JobStatusQueued,
		Inputs:     inputs,
		EnqueuedAt: time.Now().UTC(),
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, JobKey(job.ID), map[string]any{
		fieldStatus:     job.Status,
		fieldInputs:     encoded,
		fieldEnqueuedAt: job.EnqueuedAt.Format(time.RFC3339Nano),
	})
	pipe.LPush(ctx, pendingKey, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("enqueueing job: %w", err)
	}

	return job, nil
}

// Dequeue atomically moves one job id from the pending list to the active
// list, giving the caller an exclusive lease on it.
func (s *RedisStore) Dequeue(ctx context.Context, block time.Duration) (*models.Job, bool, error) {
	jobID, err := s.client.BLMove(ctx, pendingKey, activeKey, "RIGHT", "LEFT", block).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("dequeueing: %w", err)
	}

	job, err := s.GetJob(ctx, jobID)
	if err == ErrJobNotFound {
		// Record expired out from under the queue entry; drop the lease.
		s.client.LRem(ctx, activeKey, 1, jobID)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return job, true, nil
}

func (s *RedisStore) MarkProcessing(ctx context.Context, jobID string) error {
	err := s.client.HSet(ctx, JobKey(jobID), map[string]any{
		fieldStatus:    models.JobStatusProcessing,
		fieldStartedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}).Err()
	if err != nil {
		return fmt.Errorf("marking job %s processing: %w", jobID, err)
	}
	return nil
}

func (s *RedisStore) Complete(ctx context.Context, jobID, result string) error {
	return s.finish(ctx, jobID, map[string]any{
		fieldStatus:  models.JobStatusCompleted,
		fieldResult:  result,
		fieldEndedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (s *RedisStore) Fail(ctx context.Context, jobID, errMsg string) error {
	return s.finish(ctx, jobID, map[string]any{
		fieldStatus:  models.JobStatusFailed,
		fieldError:   errMsg,
		fieldEndedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// finish writes a terminal state and releases the active-list lease.
func (s *RedisStore) finish(ctx context.Context, jobID string, fields map[string]any) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, JobKey(jobID), fields)
	pipe.LRem(ctx, activeKey, 1, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("finishing job %s: %w", jobID, err)
	}
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	fields, err := s.client.HGetAll(ctx, JobKey(jobID)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetching job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	job := &models.Job{
		ID:     jobID,
		Status: fields[fieldStatus],
	}

	if raw, ok := fields[fieldInputs]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &job.Inputs); err != nil {
			return nil, fmt.Errorf("decoding inputs for job %s: %w", jobID, err)
		}
	}
	if v, ok := fields[fieldResult]; ok {
		job.Result = &v
	}
	if v, ok := fields[fieldError]; ok {
		job.Error = &v
	}

	if ts, err := parseTime(fields[fieldEnqueuedAt]); err == nil {
		job.EnqueuedAt = ts
	}
	if ts, err := parseTime(fields[fieldStartedAt]); err == nil {
		job.StartedAt = &ts
	}
	if ts, err := parseTime(fields[fieldEndedAt]); err == nil {
		job.EndedAt = &ts
	}

	return job, nil
}

func (s *RedisStore) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	return time.Parse(time.RFC3339Nano, v)
}

var _ Store = (*RedisStore)(nil)
