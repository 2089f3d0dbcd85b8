package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vantagehq/marketscope/api/schemas"
	"github.com/vantagehq/marketscope/internal/config"
)

// Provider identifiers accepted in config.
const (
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// New creates an LLM client for the configured provider. "none" yields a
// client that always reports unavailable, forcing every agent onto its
// deterministic heuristic path - useful for offline runs and tests.
func New(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case ProviderGemini, "":
		return NewGeminiClient(cfg, logger), nil
	case ProviderNone:
		return Unavailable{}, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q (supported: %s, %s)",
			cfg.Provider, ProviderGemini, ProviderNone)
	}
}

// Unavailable is an LLM client without credentials. Every call fails;
// IsAvailable steers agents away before they try.
type Unavailable struct{}

var _ schemas.LLMClient = Unavailable{}

func (Unavailable) IsAvailable() bool { return false }

func (Unavailable) Complete(context.Context, schemas.GenerationRequest) (string, error) {
	return "", fmt.Errorf("no LLM provider configured")
}

func (Unavailable) CompleteJSON(context.Context, schemas.GenerationRequest) (map[string]any, error) {
	return nil, fmt.Errorf("no LLM provider configured")
}
