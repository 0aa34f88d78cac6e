package ollama

import (
	"testing"

	"github.com/ollama/ollama/api"

	"github.com/relaycore/llmrelay/llm"
)

func TestToChatMessagesRolesAndText(t *testing.T) {
	msgs := toChatMessages([]llm.Message{
		llm.NewTextMessage(llm.RoleUser, "hello"),
		llm.NewTextMessage(llm.RoleAssistant, "hi"),
	})
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[0].Content != "hello" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != "assistant" || msgs[1].Content != "hi" {
		t.Errorf("unexpected second message: %+v", msgs[1])
	}
}

func TestToChatMessageToolResultBecomesToolRole(t *testing.T) {
	out := toChatMessage(llm.NewToolResultMessage([]llm.ToolResultBlock{
		{ID: "call_1", Content: "42"},
	}))
	if len(out) != 1 {
		t.Fatalf("expected 1 wire message, got %d", len(out))
	}
	if out[0].Role != "tool" || out[0].Content != "42" {
		t.Errorf("unexpected tool message: %+v", out[0])
	}
}

func TestToChatToolsPropertyTypes(t *testing.T) {
	tools := toChatTools([]llm.ToolSpec{{
		Name:        "get_weather",
		Description: "Current weather",
		Schema: llm.ToolSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"city":  map[string]interface{}{"type": "string", "description": "City name"},
				"count": map[string]interface{}{"type": "integer"},
				"weird": "not-a-map",
			},
			Required: []string{"city"},
		},
	}})
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	params := tools[0].Function.Parameters
	if params.Type != "object" || len(params.Required) != 1 {
		t.Errorf("unexpected parameters: %+v", params)
	}

	city := params.Properties["city"]
	if len(city.Type) != 1 || city.Type[0] != "string" || city.Description != "City name" {
		t.Errorf("unexpected city property: %+v", city)
	}
	count := params.Properties["count"]
	if len(count.Type) != 1 || count.Type[0] != "integer" {
		t.Errorf("unexpected count property: %+v", count)
	}
	// Unparseable property schemas fall back to string.
	weird := params.Properties["weird"]
	if len(weird.Type) != 1 || weird.Type[0] != "string" {
		t.Errorf("unexpected fallback property: %+v", weird)
	}
}

func TestFromToolCallSynthesizesID(t *testing.T) {
	a := fromToolCall(api.ToolCall{Function: api.ToolCallFunction{
		Name:      "lookup",
		Arguments: api.ToolCallFunctionArguments{"q": "go"},
	}})
	b := fromToolCall(api.ToolCall{Function: api.ToolCallFunction{Name: "lookup"}})

	if a.Name != "lookup" || a.Input["q"] != "go" {
		t.Errorf("unexpected block: %+v", a)
	}
	if a.ID == "" || b.ID == "" || a.ID == b.ID {
		t.Errorf("expected distinct synthesized IDs, got %q and %q", a.ID, b.ID)
	}
}

func TestParseHost(t *testing.T) {
	u, err := parseHost("box:11434")
	if err != nil {
		t.Fatalf("parseHost failed: %v", err)
	}
	if u.Scheme != "http" || u.Host != "box:11434" {
		t.Errorf("unexpected URL: %v", u)
	}

	u, err = parseHost("https://ollama.internal")
	if err != nil {
		t.Fatalf("parseHost failed: %v", err)
	}
	if u.Scheme != "https" || u.Host != "ollama.internal" {
		t.Errorf("unexpected URL: %v", u)
	}
}
