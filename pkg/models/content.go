// Package models defines the immutable value types shared across the
// runtime: messages, content blocks, usage accounting, and the session
// export envelope.
package models

import "encoding/json"

// Role identifies who authored a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MediaKind enumerates the non-text content a MediaBlock can carry.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaAudio    MediaKind = "audio"
	MediaVideo    MediaKind = "video"
	MediaDocument MediaKind = "document"
)

// ContentBlock is a tagged variant: exactly one of TextBlock, ToolUseBlock,
// ToolResultBlock, or MediaBlock. It is not a map — callers type-switch or
// use BlockKind.
type ContentBlock interface {
	blockKind() string
}

// BlockKind returns the tag of a content block ("text", "tool_use",
// "tool_result", "media").
func BlockKind(b ContentBlock) string {
	if b == nil {
		return ""
	}
	return b.blockKind()
}

// TextBlock is a plain-text content block.
type TextBlock struct {
	Text string
}

func (TextBlock) blockKind() string { return "text" }

// ToolUseBlock is a model-issued request to invoke a named tool. Input is a
// JSON object; it is kept as json.RawMessage so it can be validated against
// a tool's schema without a decode/encode round trip.
type ToolUseBlock struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (ToolUseBlock) blockKind() string { return "tool_use" }

// ToolResultBlock reflects a tool's output back to the model. It is only
// ever valid inside a user-role message. ToolUseID must match a ToolUseBlock
// ID emitted by a preceding assistant message in the same conversation.
type ToolResultBlock struct {
	ToolUseID string
	Content   string
	IsError   bool
}

func (ToolResultBlock) blockKind() string { return "tool_result" }

// MediaBlock carries binary/non-text content either inline (Data, base64 or
// raw bytes depending on the provider boundary) or by reference (URI).
type MediaBlock struct {
	Kind     MediaKind
	MimeType string
	Data     []byte
	URI      string
}

func (MediaBlock) blockKind() string { return "media" }

// Content is either a plain string or an ordered sequence of content
// blocks. Exactly one of Text/Blocks is meaningful; IsBlocks reports which.
type Content struct {
	text   string
	blocks []ContentBlock
	isBlocks bool
}

// TextContent builds a string-valued Content.
func TextContent(s string) Content {
	return Content{text: s}
}

// BlockContent builds a block-sequence Content.
func BlockContent(blocks ...ContentBlock) Content {
	return Content{blocks: blocks, isBlocks: true}
}

// IsBlocks reports whether this Content holds a block sequence rather than
// a plain string.
func (c Content) IsBlocks() bool { return c.isBlocks }

// Text returns the plain-string form. Valid only when IsBlocks() is false.
func (c Content) Text() string { return c.text }

// Blocks returns the block sequence. Valid only when IsBlocks() is true.
func (c Content) Blocks() []ContentBlock { return c.blocks }

// Message is an immutable turn of the conversation.
type Message struct {
	Role    Role
	Content Content
}

// NewTextMessage builds a plain-text message.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: TextContent(text)}
}

// NewBlockMessage builds a block-content message.
func NewBlockMessage(role Role, blocks ...ContentBlock) Message {
	return Message{Role: role, Content: BlockContent(blocks...)}
}

// ToolUseBlocks extracts every ToolUseBlock from the message, in order.
// Returns nil for a string-content or tool-use-free message.
func (m Message) ToolUseBlocks() []ToolUseBlock {
	if !m.Content.IsBlocks() {
		return nil
	}
	var out []ToolUseBlock
	for _, b := range m.Content.Blocks() {
		if tu, ok := b.(ToolUseBlock); ok {
			out = append(out, tu)
		}
	}
	return out
}

// TextOrEmpty returns the message's string content, or "" for block
// content. Used for display/logging where exact block structure doesn't
// matter.
func (m Message) TextOrEmpty() string {
	if m.Content.IsBlocks() {
		return ""
	}
	return m.Content.Text()
}
