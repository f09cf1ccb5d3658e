// internal/selector/selector_test.go
package selector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/skryptik/sift-cli/api/schemas"
	"github.com/skryptik/sift-cli/internal/config"
)

// -- Mocks --

// mockLLMClient scripts one response per Generate call and records the
// prompts it was given.
type mockLLMClient struct {
	response string
	usage    schemas.TokenUsage
	err      error

	calls       int
	lastRequest GenerationRequest
}

func (m *mockLLMClient) Generate(_ context.Context, req GenerationRequest) (string, schemas.TokenUsage, error) {
	m.calls++
	m.lastRequest = req
	return m.response, m.usage, m.err
}

func testSelectorConfig() config.SelectorConfig {
	return config.SelectorConfig{
		Provider:       "gemini",
		Model:          "test-model",
		RequestsPerSec: 1000, // effectively unthrottled in tests
	}
}

func candidates() []schemas.Element {
	return []schemas.Element{
		{Identifier: "s1", Role: "link", Text: "Japan travel guide", Interactive: true, InViewport: true},
		{Identifier: "s2", Role: "link", Text: "Kyoto on a budget", Interactive: true, InViewport: true},
		{Identifier: "s3", Role: "heading", Text: "Results", Interactive: false, InViewport: true},
	}
}

// -- LLM Selector --

func TestLLMSelectorHappyPath(t *testing.T) {
	client := &mockLLMClient{
		response: `{"element_id": "s2", "reasoning": "budget guide matches the task", "result_title": "Kyoto on a budget"}`,
		usage:    schemas.TokenUsage{PromptTokens: 900, CompletionTokens: 40, TotalTokens: 940},
	}
	sel := NewLLMSelector(client, testSelectorConfig(), zap.NewNop())

	goal := Goal{Scene: "scene 3", Objective: "Select a non-ad search result", PreferredRoles: []string{"link"}}
	selection, usage, err := sel.Select(context.Background(), goal, candidates())
	require.NoError(t, err)

	assert.Equal(t, "s2", selection.Identifier)
	assert.Equal(t, 940, usage.TotalTokens)
	assert.Equal(t, 1, client.calls)

	// The candidate set and the objective must both reach the model.
	assert.Contains(t, client.lastRequest.UserPrompt, "Select a non-ad search result")
	assert.Contains(t, client.lastRequest.UserPrompt, "Kyoto on a budget")
	assert.True(t, client.lastRequest.ForceJSON)
}

func TestLLMSelectorEmptyCandidatesSkipsModel(t *testing.T) {
	client := &mockLLMClient{response: `{"element_id": "s1"}`}
	sel := NewLLMSelector(client, testSelectorConfig(), zap.NewNop())

	_, usage, err := sel.Select(context.Background(), Goal{Scene: "scene 1"}, nil)
	assert.ErrorIs(t, err, ErrNoCandidate)
	assert.Zero(t, usage.TotalTokens, "an empty candidate set must not cost tokens")
	assert.Zero(t, client.calls)
}

func TestLLMSelectorUnsetRateLimitDoesNotBlock(t *testing.T) {
	client := &mockLLMClient{response: `{"element_id": "s1", "reasoning": "first link"}`}
	// A hand-built config that never went through SetDefaults leaves
	// RequestsPerSec at zero; Select must still complete.
	cfg := config.SelectorConfig{Provider: "gemini", Model: "test-model"}
	sel := NewLLMSelector(client, cfg, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	selection, _, err := sel.Select(ctx, Goal{Scene: "scene 3"}, candidates())
	require.NoError(t, err)
	assert.Equal(t, "s1", selection.Identifier)
	assert.Equal(t, 1, client.calls)
}

func TestLLMSelectorRejectsNonMember(t *testing.T) {
	client := &mockLLMClient{response: `{"element_id": "s99", "reasoning": "hallucinated"}`}
	sel := NewLLMSelector(client, testSelectorConfig(), zap.NewNop())

	_, _, err := sel.Select(context.Background(), Goal{Scene: "scene 3"}, candidates())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in the candidate set")
}

func TestLLMSelectorModelDeclines(t *testing.T) {
	client := &mockLLMClient{response: `{"element_id": "", "reasoning": "every candidate is unrelated"}`}
	sel := NewLLMSelector(client, testSelectorConfig(), zap.NewNop())

	_, _, err := sel.Select(context.Background(), Goal{Scene: "scene 3"}, candidates())
	assert.ErrorIs(t, err, ErrNoCandidate)
}

func TestLLMSelectorPropagatesClientError(t *testing.T) {
	transport := errors.New("connection reset")
	client := &mockLLMClient{err: transport}
	sel := NewLLMSelector(client, testSelectorConfig(), zap.NewNop())

	_, _, err := sel.Select(context.Background(), Goal{Scene: "scene 3"}, candidates())
	require.Error(t, err)
	assert.ErrorIs(t, err, transport)
	assert.NotErrorIs(t, err, ErrNoCandidate, "transport failures must stay distinct from no-candidate")
}

func TestParseSelection(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		wantID  string
		wantErr bool
	}{
		{
			name:   "plain json",
			raw:    `{"element_id": "s1", "reasoning": "r"}`,
			wantID: "s1",
		},
		{
			name:   "fenced json",
			raw:    "```json\n{\"element_id\": \"s2\"}\n```",
			wantID: "s2",
		},
		{
			name:   "bare fence",
			raw:    "```\n{\"element_id\": \"s3\"}\n```",
			wantID: "s3",
		},
		{
			name:    "prose answer",
			raw:     "I would click the second link.",
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			selection, err := parseSelection(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantID, selection.Identifier)
		})
	}
}

// -- Rule Selector --

func TestRuleSelectorPrefersConfiguredRole(t *testing.T) {
	sel := NewRuleSelector(zap.NewNop())

	goal := Goal{Scene: "scene 1", PreferredRoles: []string{"combobox", "searchbox"}}
	kept := []schemas.Element{
		{Identifier: "s1", Role: "link", Interactive: true},
		{Identifier: "s2", Role: "searchbox", Interactive: true},
		{Identifier: "s3", Role: "combobox", Interactive: true},
	}

	selection, usage, err := sel.Select(context.Background(), goal, kept)
	require.NoError(t, err)
	assert.Equal(t, "s3", selection.Identifier, "first preferred role wins over list position of later preferences")
	assert.Zero(t, usage.TotalTokens)
}

func TestRuleSelectorFallsBackToFirstInteractive(t *testing.T) {
	sel := NewRuleSelector(zap.NewNop())

	kept := []schemas.Element{
		{Identifier: "s1", Role: "heading", Interactive: false},
		{Identifier: "s2", Role: "link", Interactive: true},
	}
	selection, _, err := sel.Select(context.Background(), Goal{PreferredRoles: []string{"combobox"}}, kept)
	require.NoError(t, err)
	assert.Equal(t, "s2", selection.Identifier)
}

func TestRuleSelectorNoCandidate(t *testing.T) {
	sel := NewRuleSelector(zap.NewNop())

	_, _, err := sel.Select(context.Background(), Goal{}, nil)
	assert.ErrorIs(t, err, ErrNoCandidate)

	onlyInert := []schemas.Element{{Identifier: "s1", Role: "heading", Interactive: false}}
	_, _, err = sel.Select(context.Background(), Goal{}, onlyInert)
	assert.ErrorIs(t, err, ErrNoCandidate)
}
