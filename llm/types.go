package llm

import (
	"encoding/json"
	"time"
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

// Message represents a single message in a conversation.
// This is provider-neutral and can represent user, assistant, or system messages.
type Message struct {
	Role    MessageRole
	Content []ContentBlock
}

// ContentBlock represents a single content block within a message.
// It can be text, a tool use, or a tool result.
type ContentBlock struct {
	Type       ContentBlockType
	Text       string           // For text blocks
	ToolUse    *ToolUseBlock    // For tool use blocks
	ToolResult *ToolResultBlock // For tool result blocks
}

// ContentBlockType represents the type of content block.
type ContentBlockType string

const (
	ContentBlockTypeText       ContentBlockType = "text"
	ContentBlockTypeToolUse    ContentBlockType = "tool_use"
	ContentBlockTypeToolResult ContentBlockType = "tool_result"
)

// ToolUseBlock represents a tool invocation request from the assistant.
type ToolUseBlock struct {
	ID        string
	Name      string
	Arguments string                 // Raw serialized input as received from the provider
	Input     map[string]interface{} // Parsed input parameters
}

// ToolResultBlock represents the result of a tool invocation.
type ToolResultBlock struct {
	ID      string
	Content string // JSON-serialized result
	IsError bool
}

// ToolSpec represents a tool definition that can be provided to an LLM.
type ToolSpec struct {
	Name        string
	Description string
	Schema      ToolSchema
}

// ToolSchema represents the JSON schema for a tool's input parameters.
type ToolSchema struct {
	Type        string
	Properties  map[string]interface{}
	Required    []string
	ExtraFields map[string]interface{} // For any additional schema fields
}

// Request represents a complete LLM API request.
// A Request is treated as immutable once constructed; callers must not
// mutate it after handing it to a Client.
type Request struct {
	Model       string
	Messages    []Message
	System      string
	Tools       []ToolSpec
	MaxTokens   int64
	Temperature *float64 // Optional temperature override
	TopP        *float64 // Optional nucleus sampling override
	Seed        *int     // Optional random seed (providers that support it)
	User        string   // Optional end-user tag passed through to the provider
}

// Response represents a complete LLM API response.
type Response struct {
	Content    []ContentBlock
	Usage      *Usage
	StopReason string
	Latency    time.Duration
}

// Text returns the concatenation of all text blocks in the response.
func (r *Response) Text() string {
	var out string
	for _, block := range r.Content {
		if block.Type == ContentBlockTypeText {
			out += block.Text
		}
	}
	return out
}

// ToolUses returns all tool use blocks in the response, in order.
func (r *Response) ToolUses() []*ToolUseBlock {
	var uses []*ToolUseBlock
	for _, block := range r.Content {
		if block.Type == ContentBlockTypeToolUse && block.ToolUse != nil {
			uses = append(uses, block.ToolUse)
		}
	}
	return uses
}

// Usage represents token usage information from an LLM response.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	// Provider-specific usage fields can be added here
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// StreamEvent is one wire unit of a streaming response. A chunk may carry
// a content or tool-call fragment, usage counters, and a terminal marker.
// Chunks for the same tool call arrive in order and their fragments must
// be concatenated as-is.
type StreamEvent struct {
	Delta        *StreamDelta
	Usage        *Usage
	FinishReason string // Set on the terminal chunk
	Done         bool   // Terminal marker; no chunks follow
}

// StreamDelta is the incremental payload of one chunk. Exactly one of the
// two forms is populated: a text fragment, or a tool-call fragment keyed
// by ToolCallID carrying name and/or argument pieces.
type StreamDelta struct {
	Text       string
	ToolCallID string
	ToolName   string // Name fragment for the identified call
	ToolArgs   string // Serialized-argument fragment for the identified call
}

// TextDeltaEvent builds a chunk carrying a text fragment.
func TextDeltaEvent(text string) *StreamEvent {
	return &StreamEvent{Delta: &StreamDelta{Text: text}}
}

// ToolDeltaEvent builds a chunk carrying a tool-call fragment for callID.
func ToolDeltaEvent(callID, name, args string) *StreamEvent {
	return &StreamEvent{Delta: &StreamDelta{ToolCallID: callID, ToolName: name, ToolArgs: args}}
}

// DoneEvent builds the terminal chunk with the finish reason and, when the
// provider reports it, final usage counters.
func DoneEvent(finishReason string, usage *Usage) *StreamEvent {
	return &StreamEvent{FinishReason: finishReason, Usage: usage, Done: true}
}

// NewTextMessage creates a new message with a single text content block.
func NewTextMessage(role MessageRole, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{
				Type: ContentBlockTypeText,
				Text: text,
			},
		},
	}
}

// NewToolUseMessage creates a new assistant message with tool use blocks.
func NewToolUseMessage(toolUses []ToolUseBlock) Message {
	content := make([]ContentBlock, len(toolUses))
	for i, tu := range toolUses {
		content[i] = ContentBlock{
			Type:    ContentBlockTypeToolUse,
			ToolUse: &tu,
		}
	}
	return Message{
		Role:    RoleAssistant,
		Content: content,
	}
}

// NewToolResultMessage creates a new user message with tool result blocks.
func NewToolResultMessage(toolResults []ToolResultBlock) Message {
	content := make([]ContentBlock, len(toolResults))
	for i, tr := range toolResults {
		content[i] = ContentBlock{
			Type:       ContentBlockTypeToolResult,
			ToolResult: &tr,
		}
	}
	return Message{
		Role:    RoleUser,
		Content: content,
	}
}

// ToJSON marshals a message to JSON for debugging/logging purposes.
func (m Message) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
