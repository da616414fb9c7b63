package turn

import (
	"context"
	"sync"

	"github.com/haasonsaas/agentrt/internal/provider"
	"github.com/haasonsaas/agentrt/pkg/models"
)

// scriptStep is one canned provider response or error, consumed in order by
// a scriptedProvider. This is the "Provider script" fixture: a fake
// provider.Provider that replays a fixed sequence of completions so the
// Turn engine's retry/loop state machine can be exercised deterministically
// without a real network call.
type scriptStep struct {
	result provider.CompletionResult
	err    error
}

type scriptedProvider struct {
	mu    sync.Mutex
	steps []scriptStep
	calls int
}

func newScriptedProvider(steps ...scriptStep) *scriptedProvider {
	return &scriptedProvider{steps: steps}
}

func (s *scriptedProvider) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *scriptedProvider) next() (provider.CompletionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.steps) {
		// Script exhausted: the test drove the loop further than it
		// scripted for. Return a terminal completion rather than
		// panicking so the failure surfaces as a visible assertion
		// mismatch instead of a crash.
		s.calls++
		return provider.CompletionResult{StopReason: provider.StopEndTurn, Messages: []models.Message{models.NewTextMessage(models.RoleAssistant, "script exhausted")}}, nil
	}
	step := s.steps[s.calls]
	s.calls++
	return step.result, step.err
}

func (s *scriptedProvider) Provider() provider.Provider {
	return provider.Provider{
		Name: "scripted",
		Complete: func(ctx context.Context, messages []models.Message, tools []provider.ToolDef, cfg map[string]any) (provider.CompletionResult, error) {
			return s.next()
		},
	}
}

func textResult(text string) provider.CompletionResult {
	return provider.CompletionResult{
		StopReason: provider.StopEndTurn,
		Messages:   []models.Message{models.NewTextMessage(models.RoleAssistant, text)},
	}
}

func toolUseResult(toolName, id, inputJSON string) provider.CompletionResult {
	return provider.CompletionResult{
		StopReason: provider.StopToolUse,
		Messages: []models.Message{
			models.NewBlockMessage(models.RoleAssistant, models.ToolUseBlock{ID: id, Name: toolName, Input: []byte(inputJSON)}),
		},
	}
}
