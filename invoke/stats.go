package invoke

import (
	"sync/atomic"
	"time"
)

// Stats collects cumulative invocation counters. One Stats value is
// typically shared by every invoker in the process; all mutations are
// atomic so concurrent invocations never lose updates.
type Stats struct {
	attempts     atomic.Int64
	successes    atomic.Int64
	failures     atomic.Int64
	retries      atomic.Int64
	inputTokens  atomic.Int64
	outputTokens atomic.Int64
	elapsedNanos atomic.Int64
}

// Snapshot is a read-only copy of the counters at one point in time.
type Snapshot struct {
	Attempts     int64
	Successes    int64
	Failures     int64
	Retries      int64
	InputTokens  int64
	OutputTokens int64
	Elapsed      time.Duration
}

// NewStats creates an empty collector.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) recordAttempt() {
	s.attempts.Add(1)
}

func (s *Stats) recordRetry() {
	s.retries.Add(1)
}

func (s *Stats) recordFailure(elapsed time.Duration) {
	s.failures.Add(1)
	s.elapsedNanos.Add(int64(elapsed))
}

func (s *Stats) recordSuccess(inputTokens, outputTokens int64, elapsed time.Duration) {
	s.successes.Add(1)
	s.inputTokens.Add(inputTokens)
	s.outputTokens.Add(outputTokens)
	s.elapsedNanos.Add(int64(elapsed))
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Attempts:     s.attempts.Load(),
		Successes:    s.successes.Load(),
		Failures:     s.failures.Load(),
		Retries:      s.retries.Load(),
		InputTokens:  s.inputTokens.Load(),
		OutputTokens: s.outputTokens.Load(),
		Elapsed:      time.Duration(s.elapsedNanos.Load()),
	}
}

// Reset zeroes all counters.
func (s *Stats) Reset() {
	s.attempts.Store(0)
	s.successes.Store(0)
	s.failures.Store(0)
	s.retries.Store(0)
	s.inputTokens.Store(0)
	s.outputTokens.Store(0)
	s.elapsedNanos.Store(0)
}
