package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/relaycore/llmrelay/llm"
)

// toChatMessages converts neutral messages to the chat completions format.
// Tool results become role "tool" messages tied back by tool_call_id.
func toChatMessages(msgs []llm.Message) ([]openai.ChatCompletionMessage, error) {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		converted, err := toChatMessage(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, converted...)
	}
	return out, nil
}

// toChatMessage converts one message. A neutral message may expand into
// several wire messages because tool results travel one per message.
func toChatMessage(msg llm.Message) ([]openai.ChatCompletionMessage, error) {
	role := openai.ChatMessageRoleUser
	switch msg.Role {
	case llm.RoleAssistant:
		role = openai.ChatMessageRoleAssistant
	case llm.RoleSystem:
		role = openai.ChatMessageRoleSystem
	}

	var text strings.Builder
	var toolCalls []openai.ToolCall
	var toolResults []openai.ChatCompletionMessage

	for _, block := range msg.Content {
		switch block.Type {
		case llm.ContentBlockTypeText:
			if text.Len() > 0 {
				text.WriteString("\n")
			}
			text.WriteString(block.Text)
		case llm.ContentBlockTypeToolUse:
			if block.ToolUse == nil {
				continue
			}
			args := block.ToolUse.Arguments
			if args == "" {
				raw, err := json.Marshal(block.ToolUse.Input)
				if err != nil {
					return nil, fmt.Errorf("marshal tool input for %s: %w", block.ToolUse.Name, err)
				}
				args = string(raw)
			}
			toolCalls = append(toolCalls, openai.ToolCall{
				ID:   block.ToolUse.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      block.ToolUse.Name,
					Arguments: args,
				},
			})
		case llm.ContentBlockTypeToolResult:
			if block.ToolResult == nil {
				continue
			}
			toolResults = append(toolResults, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    block.ToolResult.Content,
				ToolCallID: block.ToolResult.ID,
			})
		}
	}

	var out []openai.ChatCompletionMessage
	if text.Len() > 0 || len(toolCalls) > 0 {
		out = append(out, openai.ChatCompletionMessage{
			Role:      role,
			Content:   text.String(),
			ToolCalls: toolCalls,
		})
	}
	out = append(out, toolResults...)
	return out, nil
}

// toChatTools converts tool specs to function definitions.
func toChatTools(specs []llm.ToolSpec) []openai.Tool {
	tools := make([]openai.Tool, 0, len(specs))
	for i := range specs {
		spec := &specs[i]
		params := map[string]interface{}{
			"type":       spec.Schema.Type,
			"properties": spec.Schema.Properties,
		}
		if params["properties"] == nil {
			params["properties"] = map[string]interface{}{}
		}
		if len(spec.Schema.Required) > 0 {
			params["required"] = spec.Schema.Required
		}
		for k, v := range spec.Schema.ExtraFields {
			params[k] = v
		}
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}

// fromToolCall converts a completed tool call from a synchronous response.
func fromToolCall(tc openai.ToolCall) *llm.ToolUseBlock {
	input := make(map[string]interface{})
	if tc.Function.Arguments != "" {
		// Tolerate malformed arguments; the raw string is preserved.
		_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
	}
	return &llm.ToolUseBlock{
		ID:        tc.ID,
		Name:      tc.Function.Name,
		Arguments: tc.Function.Arguments,
		Input:     input,
	}
}
