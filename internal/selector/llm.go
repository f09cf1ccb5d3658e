// internal/selector/llm.go
package selector

import (
	"context"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skryptik/sift-cli/api/schemas"
	"github.com/skryptik/sift-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const systemPrompt = `You are an AI agent controlling a web browser through a structured element snapshot.
You are shown a small candidate set of page elements, already filtered for the current objective.
Respond with strict JSON only, no prose:
{"element_id": "<id from the candidate set>", "reasoning": "<one sentence>", "result_title": "<element text, when selecting a result>"}
If no candidate fits the objective, respond with {"element_id": "", "reasoning": "<why>"}.`

// LLMSelector asks a language model to choose among the filtered candidates.
// Calls are rate limited; the model's answer is only trusted after it is
// validated against the candidate set it was shown.
type LLMSelector struct {
	client  LLMClient
	cfg     config.SelectorConfig
	logger  *zap.Logger
	limiter *rate.Limiter
}

func NewLLMSelector(client LLMClient, cfg config.SelectorConfig, logger *zap.Logger) *LLMSelector {
	// A zero rate would make Wait block forever. Callers that build the
	// config by hand get an unthrottled selector, not a hung one.
	limit := rate.Limit(cfg.RequestsPerSec)
	if cfg.RequestsPerSec <= 0 {
		limit = rate.Inf
	}
	return &LLMSelector{
		client:  client,
		cfg:     cfg,
		logger:  logger.Named("selector.llm"),
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (s *LLMSelector) Name() string { return s.cfg.Provider }

func (s *LLMSelector) Select(ctx context.Context, goal Goal, kept []schemas.Element) (schemas.Selection, schemas.TokenUsage, error) {
	// An empty candidate set is decided locally; there is nothing to ask
	// the model and no tokens to spend.
	if len(kept) == 0 {
		return schemas.Selection{}, schemas.TokenUsage{}, ErrNoCandidate
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return schemas.Selection{}, schemas.TokenUsage{}, err
	}

	prompt, err := buildUserPrompt(goal, kept)
	if err != nil {
		return schemas.Selection{}, schemas.TokenUsage{}, err
	}

	raw, usage, err := s.client.Generate(ctx, GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   prompt,
		Temperature:  s.cfg.Temperature,
		ForceJSON:    true,
	})
	if err != nil {
		return schemas.Selection{}, usage, err
	}

	selection, err := parseSelection(raw)
	if err != nil {
		return schemas.Selection{}, usage, err
	}

	if selection.Identifier == "" {
		s.logger.Info("Model declined to select", zap.String("scene", goal.Scene), zap.String("reasoning", selection.Reasoning))
		return schemas.Selection{}, usage, ErrNoCandidate
	}

	if !isMember(selection.Identifier, kept) {
		return schemas.Selection{}, usage, fmt.Errorf("model chose %q, which is not in the candidate set", selection.Identifier)
	}

	s.logger.Info("Model selected element",
		zap.String("scene", goal.Scene),
		zap.String("id", selection.Identifier),
		zap.String("reasoning", selection.Reasoning),
	)
	return selection, usage, nil
}

// buildUserPrompt serializes the goal and candidate set. The candidate list
// is the dominant token cost of a scene, which is exactly what upstream
// filtering is for.
func buildUserPrompt(goal Goal, kept []schemas.Element) (string, error) {
	candidates, err := json.MarshalIndent(kept, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize candidate set: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current task: %s\n", goal.Objective)
	if len(goal.PreferredRoles) > 0 {
		fmt.Fprintf(&b, "Likely element roles, in order of preference: %s\n", strings.Join(goal.PreferredRoles, ", "))
	}
	b.WriteString("Prefer elements that are in_viewport and interactive.\n\nCandidate elements:\n")
	b.Write(candidates)
	return b.String(), nil
}

// parseSelection decodes the model's JSON answer, tolerating markdown fences
// that some models wrap around JSON despite instructions.
func parseSelection(raw string) (schemas.Selection, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	var selection schemas.Selection
	if err := json.Unmarshal([]byte(cleaned), &selection); err != nil {
		return schemas.Selection{}, fmt.Errorf("failed to parse model response as JSON: %w", err)
	}
	return selection, nil
}

func isMember(identifier string, kept []schemas.Element) bool {
	for _, el := range kept {
		if el.Identifier == identifier {
			return true
		}
	}
	return false
}

var _ Selector = (*LLMSelector)(nil)
