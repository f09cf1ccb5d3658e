// internal/selector/openai.go
package selector

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/skryptik/sift-cli/api/schemas"
	"github.com/skryptik/sift-cli/internal/config"
)

// openaiClient implements LLMClient on the OpenAI chat completion API.
type openaiClient struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

func newOpenAIClient(cfg config.SelectorConfig, apiKey string, logger *zap.Logger) *openaiClient {
	return &openaiClient{
		client: openai.NewClient(apiKey),
		model:  cfg.Model,
		logger: logger.Named("llm.openai"),
	}
}

func (c *openaiClient) Generate(ctx context.Context, req GenerationRequest) (string, schemas.TokenUsage, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: float32(req.Temperature),
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt},
		},
	}
	if req.ForceJSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", schemas.TokenUsage{}, fmt.Errorf("openai generation failed: %w", err)
	}

	usage := schemas.TokenUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	if len(resp.Choices) == 0 {
		return "", usage, fmt.Errorf("openai returned no choices")
	}

	c.logger.Info("LLM generation complete",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens),
	)
	return resp.Choices[0].Message.Content, usage, nil
}

var _ LLMClient = (*openaiClient)(nil)
