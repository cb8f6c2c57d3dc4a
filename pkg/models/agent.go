package models

import (
	"context"
	"errors"
)

// Provider failure classes. Implementations wrap these so callers can
// distinguish transient backend trouble from bad output.
var (
	ErrProviderUnavailable = errors.New("llm provider unavailable")
	ErrInferenceTimeout    = errors.New("llm inference timeout")
	ErrInvalidResponse     = errors.New("llm provider returned invalid response")
)

// Provider is the core interface that all LLM integrations must implement.
// Never call a specific provider directly — always inject this interface.
type Provider interface {
	// Complete sends one completion request and returns the model's text output.
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	// Name returns the provider identifier (e.g., "openai", "mock").
	Name() string
}

// CompletionRequest is the input to a single model invocation.
type CompletionRequest struct {
	// System carries the agent persona (role, goal, backstory).
	System string
	// User carries the task description plus accumulated context.
	User string
	// JSONMode requests a JSON-only response from providers that support it.
	JSONMode bool
}
