// Package handler contains the HTTP handlers for the support API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/alexvand/supportcrew/internal/api/response"
	"github.com/alexvand/supportcrew/internal/store"
	"github.com/alexvand/supportcrew/pkg/models"
)

// Enqueuer is what the gateway handlers need from the job store.
type Enqueuer interface {
	Enqueue(ctx context.Context, inputs models.JobInputs) (*models.Job, error)
}

// JobGetter is what the status handler needs from the job store.
type JobGetter interface {
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
}

// Catalogs holds the two link-catalog snapshots loaded once at process start.
// Every enqueued job carries a copy of both.
type Catalogs struct {
	Links     []models.Link
	DocsLinks []models.Link
}

type jobQueuedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// NewSupportHandler returns an http.HandlerFunc for POST /api/support.
// It validates the query, enqueues a job with the catalog snapshots attached,
// and returns the job id without waiting for the pipeline.
func NewSupportHandler(enq Enqueuer, catalogs Catalogs) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query    string `json:"query"`
			Language string `json:"language"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if strings.TrimSpace(req.Query) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "query is required", nil)
			return
		}

		job, err := enq.Enqueue(r.Context(), models.JobInputs{
			SupportRequest: req.Query,
			Links:          catalogs.Links,
			DocsLinks:      catalogs.DocsLinks,
		})
		if err != nil {
			slog.Error("enqueue failed", "error", err)
			response.Error(w, http.StatusInternalServerError, "ENQUEUE_FAILED",
				"Could not enqueue the support request", nil)
			return
		}

		response.Accepted(w, jobQueuedResponse{JobID: job.ID, Status: job.Status})
	}
}

// NewStatusHandler returns an http.HandlerFunc for GET /api/support/status/{jobID}.
func NewStatusHandler(getter JobGetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")

		job, err := getter.GetJob(r.Context(), jobID)
		if err != nil {
			if errors.Is(err, store.ErrJobNotFound) {
				response.Error(w, http.StatusNotFound, "JOB_NOT_FOUND",
					"No job with the given id", nil)
				return
			}
			slog.Error("status lookup failed", "job_id", jobID, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, job)
	}
}
