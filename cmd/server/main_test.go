package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexvand/supportcrew/internal/config"
	"github.com/alexvand/supportcrew/internal/store"
	"github.com/alexvand/supportcrew/pkg/models"
)

// ─── mock store ──────────────────────────────────────────────────────────────

type testStore struct {
	pingErr error
}

func (s *testStore) Enqueue(_ context.Context, inputs models.JobInputs) (*models.Job, error) {
	return &models.Job{ID: "job-1", Status: models.JobStatusQueued, Inputs: inputs}, nil
}
func (s *testStore) Dequeue(_ context.Context, _ time.Duration) (*models.Job, bool, error) {
	return nil, false, nil
}
func (s *testStore) MarkProcessing(_ context.Context, _ string) error { return nil }
func (s *testStore) Complete(_ context.Context, _, _ string) error    { return nil }
func (s *testStore) Fail(_ context.Context, _, _ string) error        { return nil }
func (s *testStore) GetJob(_ context.Context, _ string) (*models.Job, error) {
	return nil, store.ErrJobNotFound
}
func (s *testStore) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}
func (s *testStore) Ping(_ context.Context) error { return s.pingErr }

var _ store.Store = (*testStore)(nil)

func testConfig() *config.Config {
	return &config.Config{
		Webhook: config.WebhookConfig{Secret: "secret"},
		AI: config.AIConfig{
			Provider: "openai",
			OpenAI:   config.OpenAIConfig{APIKey: "sk-test"},
		},
	}
}

// ─── health handler tests ───────────────────────────────────────────────────

func TestHealthHandler_AllOK(t *testing.T) {
	h := healthHandler(&testStore{}, testConfig())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	data := body["data"].(map[string]any)
	assert.Equal(t, "ok", data["status"])
	services := data["services"].(map[string]any)
	assert.Equal(t, "ok", services["job_store"])
	assert.Equal(t, "configured", services["webhook_secret"])
	assert.Equal(t, "configured", services["ai_credentials"])
}

func TestHealthHandler_StoreDegraded(t *testing.T) {
	h := healthHandler(&testStore{pingErr: errors.New("connection refused")}, testConfig())

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DEGRADED", errObj["code"])
}

func TestHealthHandler_MissingSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Webhook.Secret = ""
	h := healthHandler(&testStore{}, cfg)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "missing", details["webhook_secret"])
	// Presence only, never the value
	assert.NotContains(t, w.Body.String(), "sk-test")
}

func TestHealthHandler_MockProviderNeedsNoKey(t *testing.T) {
	cfg := testConfig()
	cfg.AI.Provider = "mock"
	cfg.AI.OpenAI.APIKey = ""
	h := healthHandler(&testStore{}, cfg)

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

// ─── run() config validation tests ──────────────────────────────────────────

func TestRun_FailsOnMissingConfig(t *testing.T) {
	for _, key := range []string{"REDIS_URL", "WEBHOOK_SECRET", "OPENAI_API_KEY"} {
		t.Setenv(key, "")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestRun_FailsOnInvalidRedisURL(t *testing.T) {
	t.Setenv("REDIS_URL", "not-a-valid-url")
	t.Setenv("WEBHOOK_SECRET", "secret")
	t.Setenv("AI_PROVIDER", "mock")

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create redis store")
}

func TestShutdownTimeout(t *testing.T) {
	assert.Equal(t, 30*time.Second, shutdownTimeout)
}
