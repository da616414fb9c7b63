// Package provider defines the external interface the Turn engine calls
// against. Concrete adapters (Anthropic, OpenAI, Bedrock, ...) are out of
// scope here; this package specifies only the contract they must satisfy.
package provider

import (
	"context"

	"github.com/haasonsaas/agentrt/pkg/models"
)

// StopReason is the provider's signal for why a completion ended.
type StopReason string

const (
	StopEndTurn      StopReason = "end_turn"
	StopToolUse      StopReason = "tool_use"
	StopMaxTokens    StopReason = "max_tokens"
	StopStopSequence StopReason = "stop_sequence"
)

// IsTerminalText reports whether r should be treated as end_turn for the
// purposes of the Turn engine's state machine. max_tokens and stop_sequence
// are both normalized to end_turn (Design Notes, open question (b)): a
// truncated response still completes the turn and still runs
// after_completion.
func (r StopReason) IsTerminalText() bool {
	return r == StopEndTurn || r == StopMaxTokens || r == StopStopSequence
}

// ToolDef is the provider-facing descriptor the tool registry produces for
// each registered tool.
type ToolDef struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// CompletionResult is what a provider call returns on success.
type CompletionResult struct {
	StopReason StopReason
	Messages   []models.Message
	Usage      models.Usage
}

// Chunk is one piece of a streaming completion, delivered to the caller's
// on_chunk callback as it arrives.
type Chunk struct {
	Delta string
	Done  bool
}

// Provider is the contract the Turn engine consumes. Streaming is optional
// and feature-detected: callers check SupportsStreaming (a non-nil Stream).
type Provider struct {
	// Complete runs one non-streaming completion.
	Complete func(ctx context.Context, messages []models.Message, tools []ToolDef, config map[string]any) (CompletionResult, error)

	// Stream runs one streaming completion, delivering chunks to onChunk
	// as they arrive. Nil if the provider doesn't support streaming.
	Stream func(ctx context.Context, messages []models.Message, tools []ToolDef, config map[string]any, onChunk func(Chunk)) (CompletionResult, error)

	// Name identifies the provider for logging/metrics/error context.
	Name string
}

// SupportsStreaming reports whether p advertises a streaming entry point.
func (p Provider) SupportsStreaming() bool {
	return p.Stream != nil
}
