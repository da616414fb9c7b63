package provider

import (
	"context"
	"strings"

	"github.com/haasonsaas/agentrt/pkg/models"
)

// Echo is a minimal built-in Provider with no network dependency: it
// reflects the latest user message back as the assistant's final answer.
// It exists so cmd/agentrt has something runnable out of the box; real
// vendor adapters (Anthropic, OpenAI, Bedrock, ...) are out of scope (see
// DESIGN.md) and are expected to be supplied by embedding code that
// constructs its own provider.Provider value.
func Echo() Provider {
	return Provider{
		Name: "echo",
		Complete: func(ctx context.Context, messages []models.Message, tools []ToolDef, cfg map[string]any) (CompletionResult, error) {
			reply := echoReply(messages)
			return CompletionResult{
				StopReason: StopEndTurn,
				Messages:   []models.Message{models.NewTextMessage(models.RoleAssistant, reply)},
				Usage:      models.Usage{InputTokens: estimateInputTokens(messages), OutputTokens: int64(len(reply)) / 4},
			}, nil
		},
		Stream: func(ctx context.Context, messages []models.Message, tools []ToolDef, cfg map[string]any, onChunk func(Chunk)) (CompletionResult, error) {
			reply := echoReply(messages)
			if onChunk != nil {
				onChunk(Chunk{Delta: reply, Done: false})
				onChunk(Chunk{Delta: "", Done: true})
			}
			return CompletionResult{
				StopReason: StopEndTurn,
				Messages:   []models.Message{models.NewTextMessage(models.RoleAssistant, reply)},
				Usage:      models.Usage{InputTokens: estimateInputTokens(messages), OutputTokens: int64(len(reply)) / 4},
			}, nil
		},
	}
}

func echoReply(messages []models.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		m := messages[i]
		if m.Role != models.RoleUser || m.Content.IsBlocks() {
			continue
		}
		text := strings.TrimSpace(m.Content.Text())
		if text == "" {
			continue
		}
		return "echo: " + text
	}
	return "echo: (no user text found)"
}

func estimateInputTokens(messages []models.Message) int64 {
	var total int64
	for _, m := range messages {
		if !m.Content.IsBlocks() {
			total += int64(len(m.Content.Text())) / 4
		}
	}
	return total
}
