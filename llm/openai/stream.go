package openai

import (
	"errors"
	"io"

	"github.com/sashabaranov/go-openai"

	"github.com/relaycore/llmrelay/llm"
)

// pumpStream drains the SDK stream in a producer goroutine and republishes
// the chunks through an llm.EventBuffer.
//
// The chat completions wire format identifies a tool call by ID only on its
// first fragment; continuation fragments carry just the positional index.
// The pump keeps an index-to-ID table so every republished fragment carries
// the stable call ID.
func pumpStream(stream *openai.ChatCompletionStream) llm.Stream {
	buf := llm.NewEventBuffer(stream.Close)

	go func() {
		callIDs := make(map[int]string)
		var finishReason string
		var usage *llm.Usage

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				buf.Push(llm.DoneEvent(finishReasonOrDefault(finishReason), usage))
				buf.Finish()
				return
			}
			if err != nil {
				buf.Fail(convertError(err))
				return
			}

			// With IncludeUsage, the last chunk has no choices and only
			// carries the usage block.
			if resp.Usage != nil {
				usage = &llm.Usage{
					InputTokens:  int64(resp.Usage.PromptTokens),
					OutputTokens: int64(resp.Usage.CompletionTokens),
				}
			}
			if len(resp.Choices) == 0 {
				continue
			}
			choice := resp.Choices[0]

			if choice.Delta.Content != "" {
				buf.Push(llm.TextDeltaEvent(choice.Delta.Content))
			}

			for _, tc := range choice.Delta.ToolCalls {
				if tc.Index == nil {
					continue
				}
				idx := *tc.Index
				if tc.ID != "" {
					callIDs[idx] = tc.ID
				}
				id := callIDs[idx]
				if id == "" {
					continue
				}
				if tc.Function.Name != "" || tc.Function.Arguments != "" {
					buf.Push(llm.ToolDeltaEvent(id, tc.Function.Name, tc.Function.Arguments))
				}
			}

			if choice.FinishReason != "" {
				finishReason = stopReason(choice.FinishReason)
			}
		}
	}()

	return buf
}

func finishReasonOrDefault(reason string) string {
	if reason == "" {
		return "stop"
	}
	return reason
}
