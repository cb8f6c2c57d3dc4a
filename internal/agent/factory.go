// Package agent wires LLM completion providers behind the models.Provider interface.
package agent

import (
	"fmt"

	"github.com/alexvand/supportcrew/internal/agent/mock"
	"github.com/alexvand/supportcrew/internal/agent/openai"
	"github.com/alexvand/supportcrew/internal/config"
	"github.com/alexvand/supportcrew/pkg/models"
)

// NewProvider constructs the appropriate LLM provider based on config.
// Called once at process startup.
func NewProvider(cfg config.AIConfig) (models.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.InferenceTimeout), nil
	case "mock":
		return mock.NewProvider(), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: must be one of openai, mock", cfg.Provider)
	}
}
