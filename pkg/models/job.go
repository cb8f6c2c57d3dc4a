// Package models contains shared data models used across the supportcrew codebase.
package models

import "time"

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job tracks one async support request through the pipeline. The API returns a
// job_id on POST /api/support; the client polls GET /api/support/status/{job_id}
// until status is completed or failed.
type Job struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Inputs     JobInputs  `json:"-"`
	Result     *string    `json:"result,omitempty"`
	Error      *string    `json:"error,omitempty"`
	EnqueuedAt time.Time  `json:"enqueued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// JobInputs is the immutable input set captured at enqueue time. It travels
// through the store as one JSON document; fields are never coerced to strings.
type JobInputs struct {
	SupportRequest string `json:"support_request"`
	Links          []Link `json:"links_data"`
	DocsLinks      []Link `json:"docs_links_data"`
}

// Terminal reports whether the job has reached a final state. Terminal jobs
// are never mutated again.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
