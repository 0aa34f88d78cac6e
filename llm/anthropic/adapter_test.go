package anthropic

import (
	"net/http"
	"reflect"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"

	"github.com/relaycore/llmrelay/llm"
)

func TestToMessageParamsRolesAndText(t *testing.T) {
	params, err := toMessageParams([]llm.Message{
		llm.NewTextMessage(llm.RoleUser, "what's the weather?"),
		llm.NewTextMessage(llm.RoleAssistant, "let me check"),
	})
	if err != nil {
		t.Fatalf("toMessageParams failed: %v", err)
	}
	if len(params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(params))
	}

	if params[0].Role != anthropic.MessageParamRoleUser {
		t.Errorf("params[0].Role = %q, want user", params[0].Role)
	}
	if params[1].Role != anthropic.MessageParamRoleAssistant {
		t.Errorf("params[1].Role = %q, want assistant", params[1].Role)
	}

	block := params[0].Content[0]
	if block.OfText == nil {
		t.Fatal("expected a text block")
	}
	if block.OfText.Text != "what's the weather?" {
		t.Errorf("text = %q", block.OfText.Text)
	}
}

func TestToMessageParamToolUse(t *testing.T) {
	input := map[string]interface{}{"location": "Paris"}
	msg := llm.Message{
		Role: llm.RoleAssistant,
		Content: []llm.ContentBlock{{
			Type: llm.ContentBlockTypeToolUse,
			ToolUse: &llm.ToolUseBlock{
				ID:        "toolu_01",
				Name:      "get_weather",
				Arguments: `{"location":"Paris"}`,
				Input:     input,
			},
		}},
	}

	param, err := toMessageParam(msg)
	if err != nil {
		t.Fatalf("toMessageParam failed: %v", err)
	}
	if len(param.Content) != 1 {
		t.Fatalf("expected 1 block, got %d", len(param.Content))
	}

	tu := param.Content[0].OfToolUse
	if tu == nil {
		t.Fatal("expected a tool_use block")
	}
	if tu.ID != "toolu_01" || tu.Name != "get_weather" {
		t.Errorf("tool use = %s/%s", tu.ID, tu.Name)
	}
	if !reflect.DeepEqual(tu.Input, input) {
		t.Errorf("input = %v, want %v", tu.Input, input)
	}
}

func TestToMessageParamToolResult(t *testing.T) {
	msg := llm.Message{
		Role: llm.RoleUser,
		Content: []llm.ContentBlock{{
			Type: llm.ContentBlockTypeToolResult,
			ToolResult: &llm.ToolResultBlock{
				ID:      "toolu_01",
				Content: `{"temp":18}`,
				IsError: true,
			},
		}},
	}

	param, err := toMessageParam(msg)
	if err != nil {
		t.Fatalf("toMessageParam failed: %v", err)
	}

	tr := param.Content[0].OfToolResult
	if tr == nil {
		t.Fatal("expected a tool_result block")
	}
	if tr.ToolUseID != "toolu_01" {
		t.Errorf("ToolUseID = %q", tr.ToolUseID)
	}
	if !tr.IsError.Value {
		t.Error("IsError not carried over")
	}
	if len(tr.Content) != 1 || tr.Content[0].OfText == nil {
		t.Fatalf("unexpected result content: %+v", tr.Content)
	}
	if tr.Content[0].OfText.Text != `{"temp":18}` {
		t.Errorf("result text = %q", tr.Content[0].OfText.Text)
	}
}

func TestToMessageParamSkipsNilBlocks(t *testing.T) {
	msg := llm.Message{
		Role: llm.RoleAssistant,
		Content: []llm.ContentBlock{
			{Type: llm.ContentBlockTypeToolUse},
			{Type: llm.ContentBlockTypeToolResult},
			{Type: llm.ContentBlockTypeText, Text: "ok"},
		},
	}

	param, err := toMessageParam(msg)
	if err != nil {
		t.Fatalf("toMessageParam failed: %v", err)
	}
	if len(param.Content) != 1 {
		t.Fatalf("expected blocks with nil payloads dropped, got %d", len(param.Content))
	}
	if param.Content[0].OfText == nil || param.Content[0].OfText.Text != "ok" {
		t.Errorf("surviving block = %+v", param.Content[0])
	}
}

func TestToToolParams(t *testing.T) {
	params := toToolParams([]llm.ToolSpec{{
		Name:        "get_weather",
		Description: "Current weather for a location",
		Schema: llm.ToolSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"location": map[string]interface{}{"type": "string"},
			},
			Required: []string{"location"},
		},
	}})
	if len(params) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(params))
	}

	tool := params[0].OfTool
	if tool == nil {
		t.Fatal("expected OfTool to be set")
	}
	if tool.Name != "get_weather" {
		t.Errorf("name = %q", tool.Name)
	}
	if tool.Description.Value != "Current weather for a location" {
		t.Errorf("description = %q", tool.Description.Value)
	}
	if tool.InputSchema.Type != "object" {
		t.Errorf("schema type = %q", tool.InputSchema.Type)
	}
	props, ok := tool.InputSchema.Properties.(map[string]interface{})
	if !ok {
		t.Fatalf("schema properties type = %T", tool.InputSchema.Properties)
	}
	if _, ok := props["location"]; !ok {
		t.Errorf("schema properties missing location: %v", props)
	}
	if len(tool.InputSchema.Required) != 1 || tool.InputSchema.Required[0] != "location" {
		t.Errorf("schema required = %v", tool.InputSchema.Required)
	}
}

func TestRetryAfterHint(t *testing.T) {
	respWith := func(value string) *http.Response {
		h := http.Header{}
		if value != "" {
			h.Set("Retry-After", value)
		}
		return &http.Response{Header: h}
	}

	cases := []struct {
		name string
		resp *http.Response
		want *time.Duration
	}{
		{"nil response", nil, nil},
		{"missing header", respWith(""), nil},
		{"non-numeric", respWith("Wed, 21 Oct 2026 07:28:00 GMT"), nil},
		{"zero", respWith("0"), nil},
		{"negative", respWith("-3"), nil},
		{"seconds", respWith("7"), durationPtr(7 * time.Second)},
	}
	for _, c := range cases {
		got := retryAfterHint(c.resp)
		switch {
		case c.want == nil && got != nil:
			t.Errorf("%s: expected no hint, got %v", c.name, *got)
		case c.want != nil && got == nil:
			t.Errorf("%s: expected %v, got nil", c.name, *c.want)
		case c.want != nil && got != nil && *got != *c.want:
			t.Errorf("%s: got %v, want %v", c.name, *got, *c.want)
		}
	}
}

func durationPtr(d time.Duration) *time.Duration { return &d }
