package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/alexvand/supportcrew/internal/api/response"
	"github.com/alexvand/supportcrew/pkg/models"
)

const signatureHeader = "Plain-Signature"

// webhookEvent is the inbound event envelope. Only the nested message
// content is of interest; everything else is logged and dropped.
type webhookEvent struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	WorkspaceID string `json:"workspaceId"`
	Payload     struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"payload"`
}

// NewWebhookHandler returns an http.HandlerFunc for POST /api/webhook.
// The signature is HMAC-SHA256 over the raw body, hex encoded, verified
// before the payload is inspected. Events without message content are
// acknowledged without enqueueing anything.
func NewWebhookHandler(enq Enqueuer, catalogs Catalogs, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Could not read body", nil)
			return
		}

		if !verifySignature(secret, body, r.Header.Get(signatureHeader)) {
			response.Error(w, http.StatusUnauthorized, "INVALID_SIGNATURE", "Invalid signature", nil)
			return
		}

		var event webhookEvent
		if err := json.Unmarshal(body, &event); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		slog.Info("webhook event received",
			"event_id", headerOr(r, "Plain-Event-Id", event.ID),
			"event_type", headerOr(r, "Plain-Event-Type", event.Type),
			"workspace_id", headerOr(r, "Plain-Workspace-Id", event.WorkspaceID),
		)

		query := event.Payload.Message.Content
		if query == "" {
			response.JSON(w, map[string]string{
				"status":  "success",
				"message": "No support query found in payload",
			})
			return
		}

		job, err := enq.Enqueue(r.Context(), models.JobInputs{
			SupportRequest: query,
			Links:          catalogs.Links,
			DocsLinks:      catalogs.DocsLinks,
		})
		if err != nil {
			slog.Error("enqueue failed", "event_id", event.ID, "error", err)
			response.Error(w, http.StatusInternalServerError, "ENQUEUE_FAILED",
				"Could not enqueue the support request", nil)
			return
		}

		response.Accepted(w, jobQueuedResponse{JobID: job.ID, Status: job.Status})
	}
}

func headerOr(r *http.Request, name, fallback string) string {
	if v := r.Header.Get(name); v != "" {
		return v
	}
	return fallback
}

func verifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
