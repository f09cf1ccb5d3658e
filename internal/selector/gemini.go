// internal/selector/gemini.go
package selector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/skryptik/sift-cli/api/schemas"
	"github.com/skryptik/sift-cli/internal/config"
)

// geminiClient implements LLMClient on the Gemini API.
type geminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func newGeminiClient(ctx context.Context, cfg config.SelectorConfig, apiKey string, logger *zap.Logger) (*geminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &geminiClient{
		client: client,
		model:  cfg.Model,
		logger: logger.Named("llm.gemini"),
	}, nil
}

func (c *geminiClient) Generate(ctx context.Context, req GenerationRequest) (string, schemas.TokenUsage, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(req.Temperature)),
		SystemInstruction: genai.NewContentFromText(req.SystemPrompt, genai.RoleUser),
	}
	if req.ForceJSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(req.UserPrompt), genCfg)
	if err != nil {
		return "", schemas.TokenUsage{}, fmt.Errorf("gemini generation failed: %w", err)
	}

	var usage schemas.TokenUsage
	if resp.UsageMetadata != nil {
		usage = schemas.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	text := resp.Text()
	if text == "" {
		return "", usage, fmt.Errorf("gemini returned no content")
	}

	c.logger.Info("LLM generation complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
	)
	return text, usage, nil
}

var _ LLMClient = (*geminiClient)(nil)
