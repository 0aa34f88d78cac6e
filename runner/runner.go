// Package runner fans a batch of model requests out across a bounded pool
// of workers and collects one outcome per task, in submission order.
//
// Each task runs to completion independently: retries, classification, and
// timeouts are handled per task by the invoker, and one task failing never
// cancels its siblings. The batch call returns only after every task has
// settled.
package runner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/relaycore/llmrelay/llm"
)

// DefaultConcurrency bounds the worker pool when no explicit limit is set.
const DefaultConcurrency = 4

// Invoker is the single-call surface the runner drives. *invoke.Invoker
// satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Task is one unit of work in a batch. ID is assigned when blank.
type Task struct {
	ID      string
	Request *llm.Request
}

// Outcome records how a single task settled. Exactly one of Response and
// Err is meaningful.
type Outcome struct {
	ID       string
	Index    int
	Response *llm.Response
	Err      error
	Class    llm.ErrorType
	Elapsed  time.Duration
}

// Success reports whether the task produced a response.
func (o Outcome) Success() bool {
	return o.Err == nil
}

// Runner executes batches of tasks with bounded concurrency.
type Runner struct {
	invoker     Invoker
	concurrency int
	logger      zerolog.Logger
}

// New creates a Runner. A concurrency of zero or less falls back to
// DefaultConcurrency.
func New(invoker Invoker, concurrency int, logger zerolog.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Runner{
		invoker:     invoker,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run executes every task and returns outcomes aligned with the input
// order: outcomes[i] always describes tasks[i]. Task failures are captured
// in their outcome rather than returned; the error return is reserved for
// batch-level cancellation.
func (r *Runner) Run(ctx context.Context, tasks []Task) ([]Outcome, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	outcomes := make([]Outcome, len(tasks))
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for i, task := range tasks {
		if task.ID == "" {
			task.ID = uuid.NewString()
		}
		outcomes[i] = Outcome{ID: task.ID, Index: i}

		// A worker slot may free up after the batch context is already
		// dead; don't start new work in that case.
		if err := gctx.Err(); err != nil {
			outcomes[i].Err = llm.AsError(err)
			outcomes[i].Class = llm.Classify(err)
			continue
		}

		g.Go(func() error {
			taskStart := time.Now()
			resp, err := r.invoker.Invoke(gctx, task.Request)
			outcomes[i].Elapsed = time.Since(taskStart)
			if err != nil {
				outcomes[i].Err = err
				outcomes[i].Class = llm.Classify(err)
				r.logger.Warn().
					Err(err).
					Str("task_id", task.ID).
					Str("class", string(outcomes[i].Class)).
					Dur("elapsed", outcomes[i].Elapsed).
					Msg("Task failed")
				// Failures are per-task outcomes, not group errors:
				// returning non-nil here would cancel the siblings.
				return nil
			}
			outcomes[i].Response = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}

	succeeded := lo.CountBy(outcomes, Outcome.Success)
	r.logger.Info().
		Int("tasks", len(tasks)).
		Int("succeeded", succeeded).
		Int("failed", len(tasks)-succeeded).
		Int("concurrency", r.concurrency).
		Dur("elapsed", time.Since(start)).
		Msg("Batch complete")

	if err := ctx.Err(); err != nil {
		return outcomes, err
	}
	return outcomes, nil
}

// Failed returns the outcomes that did not produce a response.
func Failed(outcomes []Outcome) []Outcome {
	return lo.Filter(outcomes, func(o Outcome, _ int) bool {
		return !o.Success()
	})
}
