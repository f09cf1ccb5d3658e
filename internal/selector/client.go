// internal/selector/client.go
package selector

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/skryptik/sift-cli/api/schemas"
	"github.com/skryptik/sift-cli/internal/config"
)

// GenerationRequest is the provider-neutral shape of one LLM round trip.
type GenerationRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	ForceJSON    bool
}

// LLMClient abstracts the model provider. Implementations return the raw
// response text and the usage the API billed for it.
type LLMClient interface {
	Generate(ctx context.Context, req GenerationRequest) (string, schemas.TokenUsage, error)
}

// newClient instantiates the configured provider's client.
func newClient(ctx context.Context, cfg config.SelectorConfig, logger *zap.Logger) (LLMClient, error) {
	apiKey, err := resolveAPIKey(cfg)
	if err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case "gemini":
		return newGeminiClient(ctx, cfg, apiKey, logger)
	case "openai":
		return newOpenAIClient(cfg, apiKey, logger), nil
	default:
		return nil, fmt.Errorf("unknown selector provider %q", cfg.Provider)
	}
}

// resolveAPIKey reads the key from the configured environment variable, with
// the provider's conventional variable as the default.
func resolveAPIKey(cfg config.SelectorConfig) (string, error) {
	envName := cfg.APIKeyEnv
	if envName == "" {
		switch cfg.Provider {
		case "gemini":
			envName = "GEMINI_API_KEY"
		case "openai":
			envName = "OPENAI_API_KEY"
		}
	}

	key := os.Getenv(envName)
	if key == "" {
		return "", fmt.Errorf("API key environment variable %s is not set", envName)
	}
	return key, nil
}
