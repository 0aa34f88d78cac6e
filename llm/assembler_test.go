package llm

import (
	"errors"
	"strings"
	"testing"
)

func TestAssemblerContentRoundTrip(t *testing.T) {
	deltas := []string{"The ", "quick ", "brown ", "fox ", "jumps"}
	asm := NewStreamAssembler()

	var emitted []string
	for _, d := range deltas {
		out, err := asm.Absorb(TextDeltaEvent(d))
		if err != nil {
			t.Fatalf("Absorb failed: %v", err)
		}
		if out != d {
			t.Errorf("expected delta %q passed through, got %q", d, out)
		}
		emitted = append(emitted, out)
	}
	if _, err := asm.Absorb(DoneEvent("stop", nil)); err != nil {
		t.Fatalf("Absorb terminal failed: %v", err)
	}

	want := strings.Join(deltas, "")
	if got := asm.Content(); got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if got := strings.Join(emitted, ""); got != want {
		t.Errorf("emitted concatenation = %q, want %q", got, want)
	}
	if !asm.Completed() {
		t.Error("expected assembler to be completed")
	}
	if asm.FinishReason() != "stop" {
		t.Errorf("finish reason = %q, want %q", asm.FinishReason(), "stop")
	}
}

func TestAssemblerSplitToolCall(t *testing.T) {
	asm := NewStreamAssembler()

	// Name split across 3 chunks, arguments across 5.
	nameParts := []string{"get_", "wea", "ther"}
	argParts := []string{`{"cit`, `y": "Osl`, `o", "un`, `its": "met`, `ric"}`}

	for _, p := range nameParts {
		out, err := asm.Absorb(ToolDeltaEvent("call_1", p, ""))
		if err != nil {
			t.Fatalf("Absorb failed: %v", err)
		}
		if out != "" {
			t.Errorf("tool fragment emitted content %q, want none", out)
		}
	}
	for _, p := range argParts {
		if _, err := asm.Absorb(ToolDeltaEvent("call_1", "", p)); err != nil {
			t.Fatalf("Absorb failed: %v", err)
		}
	}
	if len(asm.ToolCalls()) != 0 {
		t.Fatal("tool calls surfaced before terminal marker")
	}

	if _, err := asm.Absorb(DoneEvent("tool_calls", nil)); err != nil {
		t.Fatalf("Absorb terminal failed: %v", err)
	}

	calls := asm.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("expected exactly 1 finalized tool call, got %d", len(calls))
	}
	call := calls[0]
	if call.Name != "get_weather" {
		t.Errorf("name = %q, want %q", call.Name, "get_weather")
	}
	wantArgs := `{"city": "Oslo", "units": "metric"}`
	if call.Arguments != wantArgs {
		t.Errorf("arguments = %q, want %q", call.Arguments, wantArgs)
	}
	if call.Input["city"] != "Oslo" {
		t.Errorf("parsed city = %v, want Oslo", call.Input["city"])
	}
}

func TestAssemblerMultipleToolCallsFirstSeenOrder(t *testing.T) {
	asm := NewStreamAssembler()

	var finalized []string
	asm.OnToolCall = func(call ToolCall) {
		finalized = append(finalized, call.ID)
	}

	mustAbsorb(t, asm, ToolDeltaEvent("b", "second", ""))
	mustAbsorb(t, asm, ToolDeltaEvent("a", "first", ""))
	mustAbsorb(t, asm, ToolDeltaEvent("b", "", `{}`))
	mustAbsorb(t, asm, ToolDeltaEvent("a", "", `{}`))
	mustAbsorb(t, asm, DoneEvent("tool_calls", nil))

	calls := asm.ToolCalls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(calls))
	}
	if calls[0].ID != "b" || calls[1].ID != "a" {
		t.Errorf("expected first-seen order [b a], got [%s %s]", calls[0].ID, calls[1].ID)
	}
	if len(finalized) != 2 || finalized[0] != "b" || finalized[1] != "a" {
		t.Errorf("OnToolCall order = %v, want [b a]", finalized)
	}
}

func TestAssemblerMalformedArgumentsRepaired(t *testing.T) {
	asm := NewStreamAssembler()
	// Truncated JSON, as streamed before the model gave up mid-call.
	mustAbsorb(t, asm, ToolDeltaEvent("call_1", "search", `{"query": "retry policies"`))
	mustAbsorb(t, asm, DoneEvent("tool_calls", nil))

	calls := asm.ToolCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(calls))
	}
	if calls[0].Input["query"] != "retry policies" {
		t.Errorf("expected repaired arguments, got %v", calls[0].Input)
	}
}

func TestAssemblerRejectsChunksAfterTerminal(t *testing.T) {
	asm := NewStreamAssembler()
	mustAbsorb(t, asm, TextDeltaEvent("hello"))
	mustAbsorb(t, asm, DoneEvent("stop", nil))

	if _, err := asm.Absorb(TextDeltaEvent("late")); !errors.Is(err, ErrStreamCompleted) {
		t.Errorf("expected ErrStreamCompleted for late chunk, got %v", err)
	}
	if _, err := asm.Absorb(DoneEvent("stop", nil)); !errors.Is(err, ErrStreamCompleted) {
		t.Errorf("expected ErrStreamCompleted for duplicate terminal, got %v", err)
	}
	if got := asm.Content(); got != "hello" {
		t.Errorf("late chunk mutated content: %q", got)
	}
}

func TestAssemblerUsageAndResponse(t *testing.T) {
	asm := NewStreamAssembler()
	mustAbsorb(t, asm, TextDeltaEvent("partial "))
	mustAbsorb(t, asm, TextDeltaEvent("answer"))
	mustAbsorb(t, asm, ToolDeltaEvent("call_1", "lookup", `{"k": 1}`))
	mustAbsorb(t, asm, DoneEvent("stop", &Usage{InputTokens: 10, OutputTokens: 4}))

	resp := asm.Response()
	if resp.Text() != "partial answer" {
		t.Errorf("response text = %q", resp.Text())
	}
	uses := resp.ToolUses()
	if len(uses) != 1 || uses[0].Name != "lookup" {
		t.Fatalf("unexpected tool uses: %+v", uses)
	}
	if resp.Usage == nil || resp.Usage.InputTokens != 10 || resp.Usage.OutputTokens != 4 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
	if resp.StopReason != "stop" {
		t.Errorf("stop reason = %q", resp.StopReason)
	}
}

func mustAbsorb(t *testing.T, asm *StreamAssembler, ev *StreamEvent) {
	t.Helper()
	if _, err := asm.Absorb(ev); err != nil {
		t.Fatalf("Absorb failed: %v", err)
	}
}
