package models

import "testing"

func TestBlockKind(t *testing.T) {
	tests := []struct {
		name     string
		block    ContentBlock
		expected string
	}{
		{"text", TextBlock{Text: "hi"}, "text"},
		{"tool_use", ToolUseBlock{ID: "1", Name: "search"}, "tool_use"},
		{"tool_result", ToolResultBlock{ToolUseID: "1", Content: "ok"}, "tool_result"},
		{"media", MediaBlock{Kind: MediaImage}, "media"},
		{"nil", nil, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := BlockKind(tc.block); got != tc.expected {
				t.Errorf("BlockKind(%v) = %q, want %q", tc.block, got, tc.expected)
			}
		})
	}
}

func TestContentTextVsBlocks(t *testing.T) {
	text := TextContent("hello")
	if text.IsBlocks() {
		t.Error("TextContent should not report IsBlocks")
	}
	if text.Text() != "hello" {
		t.Errorf("Text() = %q, want %q", text.Text(), "hello")
	}

	blocks := BlockContent(TextBlock{Text: "a"}, ToolUseBlock{ID: "x"})
	if !blocks.IsBlocks() {
		t.Error("BlockContent should report IsBlocks")
	}
	if len(blocks.Blocks()) != 2 {
		t.Errorf("Blocks() len = %d, want 2", len(blocks.Blocks()))
	}
}

func TestMessageToolUseBlocks(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want int
	}{
		{"text message", NewTextMessage(RoleUser, "hi"), 0},
		{"no tool use", NewBlockMessage(RoleAssistant, TextBlock{Text: "hi"}), 0},
		{"one tool use", NewBlockMessage(RoleAssistant, TextBlock{Text: "hi"}, ToolUseBlock{ID: "1", Name: "search"}), 1},
		{"two tool uses", NewBlockMessage(RoleAssistant, ToolUseBlock{ID: "1"}, ToolUseBlock{ID: "2"}), 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.msg.ToolUseBlocks()
			if len(got) != tc.want {
				t.Errorf("ToolUseBlocks() len = %d, want %d", len(got), tc.want)
			}
		})
	}
}

func TestMessageTextOrEmpty(t *testing.T) {
	if got := NewTextMessage(RoleUser, "hello").TextOrEmpty(); got != "hello" {
		t.Errorf("TextOrEmpty() = %q, want %q", got, "hello")
	}
	if got := NewBlockMessage(RoleAssistant, TextBlock{Text: "hi"}).TextOrEmpty(); got != "" {
		t.Errorf("TextOrEmpty() for block content = %q, want empty", got)
	}
}
