package invoke

import (
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/relaycore/llmrelay/llm"
)

const (
	// DefaultMaxRetries is the default retry ceiling per invocation.
	DefaultMaxRetries = 3
	// DefaultInitialDelay is the default base delay for exponential backoff.
	DefaultInitialDelay = 500 * time.Millisecond
	// DefaultMinDelay floors every computed delay to avoid zero-wait busy loops.
	DefaultMinDelay = 100 * time.Millisecond
	// DefaultMaxInterval caps how large a single backoff delay may grow.
	DefaultMaxInterval = 60 * time.Second
	// backoffMultiplier doubles the delay each attempt.
	backoffMultiplier = 2.0
	// backoffJitter randomizes each delay by ±25%.
	backoffJitter = 0.25
)

// Policy decides whether a classified failure is retried and how long to
// wait before the next attempt. Policy is stateless; per-call mutable
// retry state lives in retryState, owned by the invoker for one call.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MinDelay     time.Duration
	MaxInterval  time.Duration
}

// DefaultPolicy returns a Policy with the default ceiling and delays.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: DefaultInitialDelay,
		MinDelay:     DefaultMinDelay,
		MaxInterval:  DefaultMaxInterval,
	}
}

// normalized fills zero fields with defaults so a partially populated
// Policy behaves sanely.
func (p Policy) normalized() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	if p.InitialDelay <= 0 {
		p.InitialDelay = DefaultInitialDelay
	}
	if p.MinDelay <= 0 {
		p.MinDelay = DefaultMinDelay
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = DefaultMaxInterval
	}
	return p
}

// ShouldRetry reports whether a failure with the given classification may
// be retried after attempt completed attempts. Once the ceiling is
// reached it returns false regardless of classification.
func (p Policy) ShouldRetry(class llm.ErrorType, attempt int) bool {
	p = p.normalized()
	if attempt >= p.MaxRetries {
		return false
	}
	return class.Retryable()
}

// DelayFor computes the backoff delay for the given attempt index:
// InitialDelay * 2^attempt, jittered by ±25%, floored at MinDelay and
// capped at MaxInterval.
func (p Policy) DelayFor(attempt int) time.Duration {
	p = p.normalized()

	delay := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= backoffMultiplier
		if delay >= float64(p.MaxInterval) {
			break
		}
	}
	if delay > float64(p.MaxInterval) {
		delay = float64(p.MaxInterval)
	}

	// Uniform jitter in [delay*(1-j), delay*(1+j)].
	jittered := delay * (1 - backoffJitter + 2*backoffJitter*rand.Float64())
	d := time.Duration(jittered)
	if d > p.MaxInterval {
		d = p.MaxInterval
	}
	if d < p.MinDelay {
		d = p.MinDelay
	}
	return d
}

// newBackOff builds the per-call backoff source. When a rate-limit
// response supplies a retry-after hint, it becomes the initial interval
// with gentler growth, the way providers expect to be treated after a 429.
func (p Policy) newBackOff(retryAfter *time.Duration) backoff.BackOff {
	p = p.normalized()

	eb := backoff.NewExponentialBackOff()
	eb.Multiplier = backoffMultiplier
	eb.RandomizationFactor = backoffJitter
	eb.InitialInterval = p.InitialDelay
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = 0 // The retry ceiling bounds us, not elapsed time.

	if retryAfter != nil && *retryAfter > 0 {
		eb.InitialInterval = *retryAfter
		if eb.InitialInterval > p.MaxInterval {
			eb.InitialInterval = p.MaxInterval
		}
		eb.Multiplier = 1.5
		eb.RandomizationFactor = 0.1
	}
	eb.Reset()

	return backoff.WithMaxRetries(eb, uint64(p.MaxRetries))
}

// retryState is the mutable per-call retry bookkeeping: attempt count,
// last observed classification, and the backoff cursor. Never shared
// across calls.
type retryState struct {
	policy    Policy
	attempts  int
	lastClass llm.ErrorType
	bo        backoff.BackOff
}

func (p Policy) newState() *retryState {
	return &retryState{policy: p.normalized()}
}

// next records a failure and returns the delay before the next attempt,
// or false when the ceiling is exhausted. The backoff source is created
// lazily on the first failure so a retry-after hint from that failure can
// seed it.
func (s *retryState) next(class llm.ErrorType, retryAfter *time.Duration) (time.Duration, bool) {
	s.lastClass = class
	s.attempts++

	if s.bo == nil {
		s.bo = s.policy.newBackOff(retryAfter)
	}
	delay := s.bo.NextBackOff()
	if delay == backoff.Stop {
		return 0, false
	}
	if delay < s.policy.MinDelay {
		delay = s.policy.MinDelay
	}
	return delay, true
}
