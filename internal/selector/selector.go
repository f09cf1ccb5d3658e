// internal/selector/selector.go
package selector

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/skryptik/sift-cli/api/schemas"
	"github.com/skryptik/sift-cli/internal/config"
)

// ErrNoCandidate is the selector's explicit "no suitable candidate" signal.
// It is a legitimate outcome distinct from transport or parse failures; the
// caller decides whether to widen the filter, re-snapshot or give up.
var ErrNoCandidate = errors.New("no suitable candidate")

// Goal describes what one scene is trying to accomplish, in terms the
// decision maker understands.
type Goal struct {
	// Scene is a human-readable label, e.g. "scene 1: find search box".
	Scene string
	// Objective is the instruction, e.g. "Find the search input field".
	Objective string
	// PreferredRoles biases deterministic selection and is surfaced to the
	// LLM as a hint. Order expresses preference.
	PreferredRoles []string
}

// Selector chooses exactly one element from a candidate set, or reports
// ErrNoCandidate. Implementations must only return identifiers drawn from
// the kept list they were shown. The returned usage is whatever the decision
// cost; deterministic selectors report zero.
type Selector interface {
	Select(ctx context.Context, goal Goal, kept []schemas.Element) (schemas.Selection, schemas.TokenUsage, error)
	Name() string
}

// New builds the configured selector. The "rule" provider needs no API key
// and keeps runs fully deterministic.
func New(ctx context.Context, cfg config.SelectorConfig, logger *zap.Logger) (Selector, error) {
	if cfg.Provider == "rule" {
		return NewRuleSelector(logger), nil
	}

	client, err := newClient(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewLLMSelector(client, cfg, logger), nil
}

// RuleSelector is the deterministic fallback: first candidate matching a
// preferred role, else the first interactive candidate.
type RuleSelector struct {
	logger *zap.Logger
}

func NewRuleSelector(logger *zap.Logger) *RuleSelector {
	return &RuleSelector{logger: logger.Named("selector.rule")}
}

func (s *RuleSelector) Name() string { return "rule" }

func (s *RuleSelector) Select(_ context.Context, goal Goal, kept []schemas.Element) (schemas.Selection, schemas.TokenUsage, error) {
	if len(kept) == 0 {
		return schemas.Selection{}, schemas.TokenUsage{}, ErrNoCandidate
	}

	for _, role := range goal.PreferredRoles {
		for _, el := range kept {
			if el.Role == role {
				s.logger.Debug("Rule selector matched preferred role",
					zap.String("scene", goal.Scene), zap.String("role", role), zap.String("id", el.Identifier))
				sel := schemas.Selection{Identifier: el.Identifier, Title: el.Text, Reasoning: "first candidate with preferred role " + role}
				return sel, schemas.TokenUsage{}, nil
			}
		}
	}

	for _, el := range kept {
		if el.Interactive {
			sel := schemas.Selection{Identifier: el.Identifier, Title: el.Text, Reasoning: "first interactive candidate"}
			return sel, schemas.TokenUsage{}, nil
		}
	}

	return schemas.Selection{}, schemas.TokenUsage{}, ErrNoCandidate
}

var _ Selector = (*RuleSelector)(nil)
