// Package compaction implements the deterministic token-budget compactor
// (C5): a token estimate triggers an in-place rewrite of middle-of-history
// content, never reordering, dropping, or merging messages.
//
// The token-estimation constant (4 characters per token) and the
// truncate-to-200-chars-plus-ellipsis shape are grounded directly on the
// teacher's internal/compaction/compaction.go (CharsPerToken=4,
// truncateString). The keep-first/keep-last-N-verbatim structure is
// grounded on internal/context/truncation.go's Truncator (keepFirst/
// keepLast), adapted here to the spec's exact keep_recent formula and to
// rewriting tool_result/long-assistant-text content in place rather than
// dropping messages outright.
package compaction

import (
	"strings"

	"github.com/haasonsaas/agentrt/pkg/models"
)

// CharsPerToken is the token-estimation heuristic: 1 token per 4
// characters of text. Budget decision only, not a billing signal.
const CharsPerToken = 4

// Fixed conservative per-block token constants for non-text content,
// spec §4.4.
const (
	TokensImage    = 1000
	TokensAudio    = 500
	TokensVideo    = 2000
	TokensDocument = 3000
)

// TriggerRatio is the fraction of max_tokens at which compaction fires.
const TriggerRatio = 0.9

// MaxAssistantTextChars is the length above which an assistant string
// message is truncated during compaction.
const MaxAssistantTextChars = 200

func estimateTextTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	return (len(s) + CharsPerToken - 1) / CharsPerToken
}

func estimateBlockTokens(b models.ContentBlock) int {
	switch v := b.(type) {
	case models.TextBlock:
		return estimateTextTokens(v.Text)
	case models.ToolUseBlock:
		return estimateTextTokens(v.Name) + estimateTextTokens(string(v.Input))
	case models.ToolResultBlock:
		return estimateTextTokens(v.Content)
	case models.MediaBlock:
		switch v.Kind {
		case models.MediaImage:
			return TokensImage
		case models.MediaAudio:
			return TokensAudio
		case models.MediaVideo:
			return TokensVideo
		case models.MediaDocument:
			return TokensDocument
		default:
			return TokensDocument
		}
	default:
		return 0
	}
}

// EstimateMessage estimates the token cost of one message.
func EstimateMessage(m models.Message) int {
	if !m.Content.IsBlocks() {
		return estimateTextTokens(m.Content.Text())
	}
	total := 0
	for _, b := range m.Content.Blocks() {
		total += estimateBlockTokens(b)
	}
	return total
}

// Estimate estimates the total token cost of a message sequence.
func Estimate(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateMessage(m)
	}
	return total
}

// ShouldCompact reports whether the estimated token cost of messages has
// reached the trigger threshold for maxTokens.
func ShouldCompact(messages []models.Message, maxTokens int) bool {
	if maxTokens <= 0 {
		return false
	}
	return float64(Estimate(messages)) >= TriggerRatio*float64(maxTokens)
}

// keepRecentCount implements keep_recent = min(10, max(1, len(messages)-2)).
func keepRecentCount(n int) int {
	k := n - 2
	if k < 1 {
		k = 1
	}
	if k > 10 {
		k = 10
	}
	return k
}

// Compact runs the deterministic compaction algorithm (spec §4.4) and
// returns a new slice; messages is never mutated in place so callers that
// hold a reference to the pre-compaction slice keep a valid view of it.
//
// Algorithm: preserve the first message verbatim, preserve the last
// keep_recent messages verbatim, and for every message strictly between
// them rewrite tool_result block content to "[compacted]" and truncate
// long assistant string text — never reordering, dropping, or merging.
func Compact(messages []models.Message) []models.Message {
	n := len(messages)
	if n == 0 {
		return messages
	}
	if n == 1 {
		return messages
	}
	keepRecent := keepRecentCount(n)
	lastStart := n - keepRecent
	if lastStart < 1 {
		lastStart = 1
	}

	out := make([]models.Message, n)
	out[0] = messages[0]
	for i := 1; i < lastStart; i++ {
		out[i] = compactMiddle(messages[i])
	}
	for i := lastStart; i < n; i++ {
		out[i] = messages[i]
	}
	return out
}

func compactMiddle(m models.Message) models.Message {
	if m.Content.IsBlocks() {
		blocks := m.Content.Blocks()
		rewritten := make([]models.ContentBlock, len(blocks))
		changed := false
		for i, b := range blocks {
			if tr, ok := b.(models.ToolResultBlock); ok {
				tr.Content = "[compacted]"
				rewritten[i] = tr
				changed = true
			} else {
				rewritten[i] = b
			}
		}
		if !changed {
			return m
		}
		return models.Message{Role: m.Role, Content: models.BlockContent(rewritten...)}
	}

	if m.Role == models.RoleAssistant {
		text := m.Content.Text()
		if len(text) > MaxAssistantTextChars {
			truncated := truncate(text, MaxAssistantTextChars)
			return models.Message{Role: m.Role, Content: models.TextContent(truncated)}
		}
	}
	return m
}

// truncate returns the first maxLen characters of s (by byte, matching the
// teacher's truncateString) with "..." appended.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	var b strings.Builder
	b.WriteString(s[:maxLen])
	b.WriteString("...")
	return b.String()
}
