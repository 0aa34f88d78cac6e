package ollama

import (
	"strings"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"github.com/relaycore/llmrelay/llm"
)

// toChatMessages converts neutral messages to the Ollama chat format.
// Tool results become role "tool" messages.
func toChatMessages(msgs []llm.Message) []api.Message {
	out := make([]api.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, toChatMessage(msg)...)
	}
	return out
}

func toChatMessage(msg llm.Message) []api.Message {
	var text strings.Builder
	var toolCalls []api.ToolCall
	var toolResults []api.Message

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
			args := make(api.ToolCallFunctionArguments)
			for k, v := range block.ToolUse.Input {
				args[k] = v
			}
			toolCalls = append(toolCalls, api.ToolCall{
				Function: api.ToolCallFunction{
					Name:      block.ToolUse.Name,
					Arguments: args,
				},
			})
		case llm.ContentBlockTypeToolResult:
			if block.ToolResult == nil {
				continue
			}
			toolResults = append(toolResults, api.Message{
				Role:    "tool",
				Content: block.ToolResult.Content,
			})
		}
	}

	var out []api.Message
	if text.Len() > 0 || len(toolCalls) > 0 {
		out = append(out, api.Message{
			Role:      string(msg.Role),
			Content:   text.String(),
			ToolCalls: toolCalls,
		})
	}
	out = append(out, toolResults...)
	return out
}

// toChatTools converts tool specs to Ollama function definitions. Only
// the type field of each property survives the conversion; richer schema
// constraints are not representable in the api.ToolProperty form.
func toChatTools(specs []llm.ToolSpec) []api.Tool {
	tools := make([]api.Tool, 0, len(specs))
	for i := range specs {
		spec := &specs[i]

		properties := make(map[string]api.ToolProperty, len(spec.Schema.Properties))
		for name, raw := range spec.Schema.Properties {
			prop := api.ToolProperty{Type: []string{"string"}}
			if propMap, ok := raw.(map[string]interface{}); ok {
				if t, ok := propMap["type"].(string); ok {
					prop.Type = []string{t}
				}
				if desc, ok := propMap["description"].(string); ok {
					prop.Description = desc
				}
			}
			properties[name] = prop
		}

		tools = append(tools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       spec.Schema.Type,
					Properties: properties,
					Required:   spec.Schema.Required,
				},
			},
		})
	}
	return tools
}

// fromToolCall converts a tool call from a synchronous response. Ollama
// provides no call IDs, so one is synthesized.
func fromToolCall(tc api.ToolCall) *llm.ToolUseBlock {
	input := make(map[string]interface{})
	for k, v := range tc.Function.Arguments {
		input[k] = v
	}
	return &llm.ToolUseBlock{
		ID:    "call_" + uuid.NewString(),
		Name:  tc.Function.Name,
		Input: input,
	}
}
