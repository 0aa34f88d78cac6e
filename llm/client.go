package llm

import (
	"context"
	"sync"
)

// Client provides a provider-neutral interface for making LLM API calls.
// Implementations handle provider-specific details internally and return
// only classified *Error values on failure.
type Client interface {
	// Synchronous sends a request and returns a complete response.
	// This is for non-streaming use cases.
	Synchronous(ctx context.Context, req *Request) (*Response, error)

	// Stream sends a request and returns a stream of chunks.
	// The caller should read from the returned Stream until it's done or
	// an error occurs.
	Stream(ctx context.Context, req *Request) (Stream, error)
}

// Stream represents a streaming response from an LLM.
type Stream interface {
	// Next advances to the next chunk in the stream.
	// Returns false when the stream is complete or an error occurs.
	Next() bool

	// Event returns the current chunk.
	// Should only be called after Next() returns true.
	Event() *StreamEvent

	// Err returns any error that occurred during streaming.
	Err() error

	// Close closes the stream and releases resources.
	Close() error
}

// EventBuffer is a Stream fed by a producer goroutine. Provider adapters
// push chunks as the SDK delivers them; a consumer drains them through the
// Stream interface. Next blocks until a chunk is available, the producer
// finishes, or it fails.
type EventBuffer struct {
	mu      sync.Mutex
	cond    *sync.Cond
	events  []*StreamEvent
	current int
	err     error
	done    bool
	onClose func() error
}

// NewEventBuffer creates an empty EventBuffer. onClose, if non-nil, is
// invoked once when the consumer closes the stream.
func NewEventBuffer(onClose func() error) *EventBuffer {
	b := &EventBuffer{current: -1, onClose: onClose}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push appends a chunk and wakes the consumer. Chunks pushed after Finish
// or Fail are dropped.
func (b *EventBuffer) Push(ev *StreamEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return
	}
	b.events = append(b.events, ev)
	b.cond.Broadcast()
}

// Finish marks the stream complete. Remaining buffered chunks are still
// delivered to the consumer.
func (b *EventBuffer) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	b.cond.Broadcast()
}

// Fail records a terminal error. Chunks already delivered are not
// retracted; the consumer observes the failure via Err.
func (b *EventBuffer) Fail(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err == nil {
		b.err = err
	}
	b.done = true
	b.cond.Broadcast()
}

// Next implements Stream.Next.
func (b *EventBuffer) Next() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.current++
	for b.current >= len(b.events) && !b.done {
		b.cond.Wait()
	}
	if b.current < len(b.events) {
		return true
	}
	return false
}

// Event implements Stream.Event.
func (b *EventBuffer) Event() *StreamEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current < 0 || b.current >= len(b.events) {
		return nil
	}
	return b.events[b.current]
}

// Err implements Stream.Err.
func (b *EventBuffer) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Close implements Stream.Close.
func (b *EventBuffer) Close() error {
	b.mu.Lock()
	closefn := b.onClose
	b.onClose = nil
	b.done = true
	b.cond.Broadcast()
	b.mu.Unlock()
	if closefn != nil {
		return closefn()
	}
	return nil
}

var _ Stream = (*EventBuffer)(nil)
