package llm

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ErrStreamCompleted is returned when a chunk arrives after the terminal
// marker has already been absorbed.
var ErrStreamCompleted = errors.New("llm: stream already completed")

// ToolCall is a finalized tool invocation reconstructed from stream chunks.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string                 // Concatenated raw argument fragments
	Input     map[string]interface{} // Parsed arguments (repaired if malformed)
}

// toolCallState accumulates the fragments of one in-flight tool call.
// Owned exclusively by one StreamAssembler for one streaming response.
type toolCallState struct {
	name     strings.Builder
	args     strings.Builder
	complete bool
}

// StreamAssembler incrementally reconstructs a streaming response: text
// fragments pass through immediately, tool-call fragments accumulate per
// call ID and surface only as complete records once the terminal marker
// arrives. One assembler serves exactly one streaming response.
type StreamAssembler struct {
	content      strings.Builder
	order        []string // Call IDs in first-seen order
	pending      map[string]*toolCallState
	calls        []ToolCall
	usage        *Usage
	finishReason string
	completed    bool

	// OnToolCall, if set, is invoked once per finalized tool call, in
	// first-seen order, when the terminal marker is absorbed.
	OnToolCall func(ToolCall)
}

// NewStreamAssembler creates an assembler ready to absorb chunks.
func NewStreamAssembler() *StreamAssembler {
	return &StreamAssembler{
		pending: make(map[string]*toolCallState),
	}
}

// Absorb consumes one chunk and returns the text fragment to surface
// immediately, if any. Tool-call fragments return an empty string; they
// are only surfaced as complete records after the terminal marker.
// Absorbing any chunk after the terminal marker returns ErrStreamCompleted.
func (a *StreamAssembler) Absorb(ev *StreamEvent) (string, error) {
	if a.completed {
		return "", ErrStreamCompleted
	}
	if ev == nil {
		return "", nil
	}

	var emitted string
	if d := ev.Delta; d != nil {
		if d.ToolCallID != "" {
			state, ok := a.pending[d.ToolCallID]
			if !ok {
				state = &toolCallState{}
				a.pending[d.ToolCallID] = state
				a.order = append(a.order, d.ToolCallID)
			}
			state.name.WriteString(d.ToolName)
			state.args.WriteString(d.ToolArgs)
		} else if d.Text != "" {
			a.content.WriteString(d.Text)
			emitted = d.Text
		}
	}

	if ev.Usage != nil {
		a.usage = ev.Usage
	}

	if ev.Done {
		a.finishReason = ev.FinishReason
		a.finishToolCalls()
		a.completed = true
	}

	return emitted, nil
}

// finishToolCalls closes every open accumulator and finalizes each call
// exactly once, in the order their IDs were first seen.
func (a *StreamAssembler) finishToolCalls() {
	for _, id := range a.order {
		state := a.pending[id]
		if state.complete {
			continue
		}
		state.complete = true

		call := ToolCall{
			ID:        id,
			Name:      state.name.String(),
			Arguments: state.args.String(),
			Input:     parseToolArguments(state.args.String()),
		}
		a.calls = append(a.calls, call)
		if a.OnToolCall != nil {
			a.OnToolCall(call)
		}
	}
}

// parseToolArguments decodes accumulated argument JSON, repairing the
// truncated or malformed output models sometimes stream before giving up.
func parseToolArguments(raw string) map[string]interface{} {
	input := make(map[string]interface{})
	if raw == "" {
		return input
	}
	if err := json.Unmarshal([]byte(raw), &input); err == nil {
		return input
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return make(map[string]interface{})
	}
	if err := json.Unmarshal([]byte(repaired), &input); err != nil {
		return make(map[string]interface{})
	}
	return input
}

// Completed reports whether the terminal marker has been absorbed.
func (a *StreamAssembler) Completed() bool {
	return a.completed
}

// Content returns the text accumulated so far.
func (a *StreamAssembler) Content() string {
	return a.content.String()
}

// FinishReason returns the terminal marker's finish reason, if absorbed.
func (a *StreamAssembler) FinishReason() string {
	return a.finishReason
}

// ToolCalls returns the finalized tool calls, in first-seen order. Empty
// until the terminal marker has been absorbed.
func (a *StreamAssembler) ToolCalls() []ToolCall {
	return a.calls
}

// Response assembles the complete Response from everything absorbed.
func (a *StreamAssembler) Response() *Response {
	var content []ContentBlock
	if text := a.content.String(); text != "" {
		content = append(content, ContentBlock{
			Type: ContentBlockTypeText,
			Text: text,
		})
	}
	for i := range a.calls {
		call := a.calls[i]
		content = append(content, ContentBlock{
			Type: ContentBlockTypeToolUse,
			ToolUse: &ToolUseBlock{
				ID:        call.ID,
				Name:      call.Name,
				Arguments: call.Arguments,
				Input:     call.Input,
			},
		})
	}
	return &Response{
		Content:    content,
		Usage:      a.usage,
		StopReason: a.finishReason,
	}
}
