package anthropic

import (
	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/relaycore/llmrelay/llm"
)

// pumpStream drains the SSE stream in a producer goroutine and republishes
// the events as neutral chunks.
//
// The Messages API addresses content blocks positionally: a tool call's ID
// and name arrive once on content_block_start, and the argument JSON
// arrives as input_json_delta fragments keyed by block index. The pump
// records the index-to-ID mapping so every fragment carries the call ID.
func pumpStream(stream *ssestream.Stream[anthropic.MessageStreamEventUnion]) llm.Stream {
	buf := llm.NewEventBuffer(stream.Close)

	go func() {
		callIDs := make(map[int64]string)
		var usage *llm.Usage
		var stopReason string

		for stream.Next() {
			switch evt := stream.Current().AsAny().(type) {
			case anthropic.MessageStartEvent:
				usage = &llm.Usage{
					InputTokens:              evt.Message.Usage.InputTokens,
					OutputTokens:             evt.Message.Usage.OutputTokens,
					CacheCreationInputTokens: evt.Message.Usage.CacheCreationInputTokens,
					CacheReadInputTokens:     evt.Message.Usage.CacheReadInputTokens,
				}

			case anthropic.ContentBlockStartEvent:
				if block, ok := evt.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
					callIDs[evt.Index] = block.ID
					buf.Push(llm.ToolDeltaEvent(block.ID, block.Name, ""))
				}

			case anthropic.ContentBlockDeltaEvent:
				switch d := evt.Delta.AsAny().(type) {
				case anthropic.TextDelta:
					if d.Text != "" {
						buf.Push(llm.TextDeltaEvent(d.Text))
					}
				case anthropic.InputJSONDelta:
					if id := callIDs[evt.Index]; id != "" && d.PartialJSON != "" {
						buf.Push(llm.ToolDeltaEvent(id, "", d.PartialJSON))
					}
				}

			case anthropic.MessageDeltaEvent:
				// Carries the final output token count and stop reason.
				if usage == nil {
					usage = &llm.Usage{}
				}
				if evt.Usage.OutputTokens > 0 {
					usage.OutputTokens = evt.Usage.OutputTokens
				}
				if evt.Delta.StopReason != "" {
					stopReason = string(evt.Delta.StopReason)
				}

			case anthropic.MessageStopEvent:
				if stopReason == "" {
					stopReason = "end_turn"
				}
				buf.Push(llm.DoneEvent(stopReason, usage))
				buf.Finish()
				return
			}
		}

		if err := stream.Err(); err != nil {
			buf.Fail(convertError(err))
			return
		}
		// Stream ended without a message_stop; surface what we have.
		buf.Push(llm.DoneEvent(stopReason, usage))
		buf.Finish()
	}()

	return buf
}
