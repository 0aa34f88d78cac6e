package runner

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaycore/llmrelay/llm"
)

// mapInvoker resolves each request by model name.
type mapInvoker struct {
	mu       sync.Mutex
	inFlight int
	peak     int
	delay    time.Duration
	failFor  map[string]error
	calls    atomic.Int64
}

func (m *mapInvoker) Invoke(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err, ok := m.failFor[req.Model]; ok {
		return nil, err
	}
	return &llm.Response{
		Content: []llm.ContentBlock{{Type: llm.ContentBlockTypeText, Text: "resp:" + req.Model}},
	}, nil
}

func makeTasks(n int) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = Task{Request: &llm.Request{Model: "m" + strconv.Itoa(i)}}
	}
	return tasks
}

func TestRunPreservesOrderAndIsolatesFailures(t *testing.T) {
	inv := &mapInvoker{
		failFor: map[string]error{
			"m2": llm.NewBadRequestError("schema rejected", 400, nil),
		},
	}
	r := New(inv, 3, zerolog.Nop())

	outcomes, err := r.Run(context.Background(), makeTasks(5))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(outcomes) != 5 {
		t.Fatalf("expected 5 outcomes, got %d", len(outcomes))
	}

	for i, o := range outcomes {
		if o.Index != i {
			t.Errorf("outcomes[%d].Index = %d", i, o.Index)
		}
		if o.ID == "" {
			t.Errorf("outcomes[%d] has no assigned ID", i)
		}
		if i == 2 {
			if o.Success() {
				t.Error("task 2 should have failed")
			}
			if o.Class != llm.ErrorTypeBadRequest {
				t.Errorf("task 2 class = %v, want %v", o.Class, llm.ErrorTypeBadRequest)
			}
			continue
		}
		if !o.Success() {
			t.Errorf("task %d failed unexpectedly: %v", i, o.Err)
		}
		if want := "resp:m" + strconv.Itoa(i); o.Response.Text() != want {
			t.Errorf("task %d response = %q, want %q", i, o.Response.Text(), want)
		}
	}

	if inv.calls.Load() != 5 {
		t.Errorf("expected all 5 tasks attempted, got %d", inv.calls.Load())
	}

	failed := Failed(outcomes)
	if len(failed) != 1 || failed[0].Index != 2 {
		t.Errorf("unexpected failed set: %+v", failed)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	inv := &mapInvoker{delay: 20 * time.Millisecond}
	r := New(inv, 2, zerolog.Nop())

	if _, err := r.Run(context.Background(), makeTasks(6)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if inv.peak > 2 {
		t.Errorf("peak concurrency %d exceeded limit 2", inv.peak)
	}
	if inv.peak < 2 {
		t.Logf("peak concurrency only reached %d; scheduler timing", inv.peak)
	}
}

func TestRunActuallyOverlapsWork(t *testing.T) {
	inv := &mapInvoker{delay: 30 * time.Millisecond}
	r := New(inv, 4, zerolog.Nop())

	start := time.Now()
	if _, err := r.Run(context.Background(), makeTasks(4)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// Serialized, four tasks would take at least 120ms.
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("batch took %v; tasks do not appear to run concurrently", elapsed)
	}
}

func TestRunPreservesExplicitIDs(t *testing.T) {
	inv := &mapInvoker{}
	r := New(inv, 1, zerolog.Nop())

	outcomes, err := r.Run(context.Background(), []Task{
		{ID: "alpha", Request: &llm.Request{Model: "m0"}},
		{Request: &llm.Request{Model: "m1"}},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcomes[0].ID != "alpha" {
		t.Errorf("explicit ID not preserved: %q", outcomes[0].ID)
	}
	if outcomes[1].ID == "" || outcomes[1].ID == "alpha" {
		t.Errorf("blank ID not assigned: %q", outcomes[1].ID)
	}
}

func TestRunEmptyBatch(t *testing.T) {
	r := New(&mapInvoker{}, 2, zerolog.Nop())
	outcomes, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcomes != nil {
		t.Errorf("expected nil outcomes for empty batch, got %v", outcomes)
	}
}

func TestRunCancelledContext(t *testing.T) {
	inv := &mapInvoker{delay: 50 * time.Millisecond}
	r := New(inv, 1, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes, err := r.Run(ctx, makeTasks(3))
	if err == nil {
		t.Fatal("expected cancellation to surface")
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected an outcome per task, got %d", len(outcomes))
	}
	for i, o := range outcomes {
		if o.Success() {
			t.Errorf("task %d should not have succeeded under a dead context", i)
			continue
		}
		var llmErr *llm.Error
		if !errors.As(o.Err, &llmErr) {
			t.Errorf("task %d error is not classified: %v", i, o.Err)
		}
		if o.Class != llm.ErrorTypeTimeout {
			t.Errorf("task %d class = %q, want %q", i, o.Class, llm.ErrorTypeTimeout)
		}
		if !errors.Is(o.Err, context.Canceled) {
			t.Errorf("task %d error does not unwrap to the cause: %v", i, o.Err)
		}
	}
}

func TestDefaultConcurrencyFallback(t *testing.T) {
	r := New(&mapInvoker{}, 0, zerolog.Nop())
	if r.concurrency != DefaultConcurrency {
		t.Errorf("concurrency = %d, want %d", r.concurrency, DefaultConcurrency)
	}
}
