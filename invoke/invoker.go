// Package invoke executes LLM requests with classified-error retry,
// exponential backoff, and cumulative usage statistics. It wraps any
// llm.Client; callers hand it immutable llm.Request values and receive
// either a complete llm.Response or a single classified error.
package invoke

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaycore/llmrelay/llm"
)

// Invoker executes requests against one provider client, retrying
// recoverable failures per its Policy. Safe for concurrent use.
type Invoker struct {
	client  llm.Client
	policy  Policy
	timeout time.Duration // Per-attempt timeout; 0 disables it
	stats   *Stats
	logger  zerolog.Logger
}

// New creates an Invoker over the given client. timeout bounds each
// individual attempt (0 disables it). stats may be shared across
// invokers; if nil, a private collector is created.
func New(client llm.Client, policy Policy, timeout time.Duration, stats *Stats, logger zerolog.Logger) *Invoker {
	if stats == nil {
		stats = NewStats()
	}
	return &Invoker{
		client:  client,
		policy:  policy.normalized(),
		timeout: timeout,
		stats:   stats,
		logger:  logger.With().Str("component", "invoker").Logger(),
	}
}

// Stats returns the invoker's statistics collector.
func (inv *Invoker) Stats() *Stats {
	return inv.stats
}

// Invoke sends a blocking-complete request, retrying recoverable
// failures up to the policy ceiling. When retries are exhausted, the
// last observed classified error propagates. Backoff sleeps suspend only
// this call; sibling goroutines keep running.
func (inv *Invoker) Invoke(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	start := time.Now()
	state := inv.policy.newState()

	for attempt := 0; ; attempt++ {
		inv.stats.recordAttempt()

		resp, err := inv.attempt(ctx, req)
		if err == nil {
			resp.Latency = time.Since(start)
			var in, out int64
			if resp.Usage != nil {
				in, out = resp.Usage.InputTokens, resp.Usage.OutputTokens
			}
			inv.stats.recordSuccess(in, out, resp.Latency)
			return resp, nil
		}

		classified := llm.AsError(err)
		if !inv.policy.ShouldRetry(classified.Type, attempt) {
			inv.stats.recordFailure(time.Since(start))
			inv.logger.Error().
				Err(classified).
				Str("classification", string(classified.Type)).
				Int("attempts", attempt+1).
				Str("model", req.Model).
				Msg("Invocation failed")
			return nil, classified
		}

		delay, ok := state.next(classified.Type, classified.RetryAfter)
		if !ok {
			inv.stats.recordFailure(time.Since(start))
			return nil, classified
		}

		inv.logger.Warn().
			Err(classified).
			Str("classification", string(classified.Type)).
			Int("attempt", attempt+1).
			Int("max_retries", inv.policy.MaxRetries).
			Dur("next_delay", delay).
			Str("model", req.Model).
			Msg("Recoverable invocation failure, retrying after delay")
		inv.stats.recordRetry()

		if err := sleepContext(ctx, delay); err != nil {
			inv.stats.recordFailure(time.Since(start))
			return nil, llm.NewTimeoutError("invocation aborted during backoff", err)
		}
	}
}

// attempt runs a single transport call under the per-attempt timeout and
// normalizes its failure into a classified error.
func (inv *Invoker) attempt(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	resp, err := inv.client.Synchronous(ctx, req)
	if err != nil {
		return nil, llm.AsError(err)
	}
	return resp, nil
}

// InvokeStream issues one streaming transport call. No retry is applied:
// chunks already delivered to the consumer cannot be retracted, so a
// mid-stream failure surfaces through Stream.Err instead. The attempt
// settles into the statistics when the returned stream is closed.
func (inv *Invoker) InvokeStream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	stream, err := inv.openStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &accountedStream{Stream: stream, stats: inv.stats, start: time.Now()}, nil
}

func (inv *Invoker) openStream(ctx context.Context, req *llm.Request) (llm.Stream, error) {
	inv.stats.recordAttempt()
	stream, err := inv.client.Stream(ctx, req)
	if err != nil {
		inv.stats.recordFailure(0)
		return nil, llm.AsError(err)
	}
	return stream, nil
}

// accountedStream settles the invocation counters exactly once, at Close:
// a failed stream records a failure, a drained (or abandoned) one records
// a success with whatever usage the terminal chunk carried.
type accountedStream struct {
	llm.Stream
	stats   *Stats
	start   time.Time
	usage   *llm.Usage
	settled bool
}

func (s *accountedStream) Event() *llm.StreamEvent {
	ev := s.Stream.Event()
	if ev != nil && ev.Done && ev.Usage != nil {
		s.usage = ev.Usage
	}
	return ev
}

func (s *accountedStream) Close() error {
	if !s.settled {
		s.settled = true
		elapsed := time.Since(s.start)
		if s.Stream.Err() != nil {
			s.stats.recordFailure(elapsed)
		} else {
			var in, out int64
			if s.usage != nil {
				in, out = s.usage.InputTokens, s.usage.OutputTokens
			}
			s.stats.recordSuccess(in, out, elapsed)
		}
	}
	return s.Stream.Close()
}

// CollectStream drives a streaming call through a StreamAssembler,
// invoking onDelta for each text fragment as it arrives, and returns the
// assembled response. On a mid-stream failure the fragments already
// passed to onDelta stand, and the classified error is returned.
func (inv *Invoker) CollectStream(ctx context.Context, req *llm.Request, onDelta func(string)) (*llm.Response, error) {
	start := time.Now()

	stream, err := inv.openStream(ctx, req)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	asm := llm.NewStreamAssembler()
	for stream.Next() {
		delta, aerr := asm.Absorb(stream.Event())
		if aerr != nil {
			inv.stats.recordFailure(time.Since(start))
			return nil, llm.AsError(aerr)
		}
		if delta != "" && onDelta != nil {
			onDelta(delta)
		}
	}
	if serr := stream.Err(); serr != nil {
		inv.stats.recordFailure(time.Since(start))
		inv.logger.Error().
			Err(serr).
			Str("model", req.Model).
			Int("partial_bytes", len(asm.Content())).
			Msg("Stream failed partway; partial content stands")
		return nil, llm.AsError(serr)
	}

	resp := asm.Response()
	resp.Latency = time.Since(start)
	var in, out int64
	if resp.Usage != nil {
		in, out = resp.Usage.InputTokens, resp.Usage.OutputTokens
	}
	inv.stats.recordSuccess(in, out, resp.Latency)
	return resp, nil
}

// sleepContext waits for the delay, or returns early when ctx is done.
func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
