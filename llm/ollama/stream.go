package ollama

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"github.com/relaycore/llmrelay/llm"
)

// pumpStream bridges the callback-based Chat API onto an llm.EventBuffer.
//
// Ollama delivers each tool call whole, arguments as an already-parsed
// map, so every call republishes as a single complete fragment rather
// than a series of partial ones. The wire format carries no call IDs
// either; the pump synthesizes one per call.
func pumpStream(ctx context.Context, client *api.Client, req *api.ChatRequest) llm.Stream {
	buf := llm.NewEventBuffer(nil)

	go func() {
		err := client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				buf.Push(llm.TextDeltaEvent(resp.Message.Content))
			}

			for _, tc := range resp.Message.ToolCalls {
				args, err := json.Marshal(tc.Function.Arguments)
				if err != nil {
					return err
				}
				callID := "call_" + uuid.NewString()
				buf.Push(llm.ToolDeltaEvent(callID, tc.Function.Name, string(args)))
			}

			if resp.Done {
				buf.Push(llm.DoneEvent(doneReason(&resp), usageFrom(&resp)))
			}
			return nil
		})
		if err != nil {
			buf.Fail(convertError(err))
			return
		}
		buf.Finish()
	}()

	return buf
}
