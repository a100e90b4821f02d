package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/wayfarerhq/wayfarer/trip"
)

// ToolInvoker executes a named tool with an argument bag. Implementations
// own their retry and backoff policy; the scheduler never retries a step.
type ToolInvoker interface {
	Invoke(ctx context.Context, tool string, args map[string]any) (string, error)
}

// RoundResult is the outcome of one scheduling round.
type RoundResult struct {
	// Events are human-readable step outcome messages for the run log.
	Events []string

	// Calls are the tool call records produced this round, one per
	// dispatched step, success or error.
	Calls []trip.ToolCall

	// Stuck is set when the graph was non-empty but nothing was ready.
	// The executor clears the graph so the run can proceed to synthesis.
	Stuck bool
}

// Executor drains a Graph one round at a time. All ready steps in a round
// are dispatched concurrently, bounded by a semaphore, and joined at a
// barrier before the round returns. One step's failure never prevents its
// siblings from completing.
type Executor struct {
	invoker     ToolInvoker
	maxParallel int64
	stepTimeout time.Duration
	logger      *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxParallel bounds concurrent tool invocations per round.
func WithMaxParallel(n int) ExecutorOption {
	return func(e *Executor) {
		if n > 0 {
			e.maxParallel = int64(n)
		}
	}
}

// WithStepTimeout bounds the wall-clock time of a single tool invocation.
func WithStepTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.stepTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates a round executor over the given invoker.
func NewExecutor(invoker ToolInvoker, opts ...ExecutorOption) *Executor {
	e := &Executor{
		invoker:     invoker,
		maxParallel: 8,
		stepTimeout: 60 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExecuteReady runs one round: every step whose dependencies are satisfied
// is dispatched, the round joins on all of them, and the executed ids are
// removed from the graph. Dispatch order within a round is unspecified.
func (e *Executor) ExecuteReady(ctx context.Context, g *Graph, completed map[string]bool) RoundResult {
	ready := g.Ready(completed)

	if len(ready) == 0 {
		if g.Len() == 0 {
			return RoundResult{}
		}
		// Nothing ready but steps remain: the graph cannot make progress.
		// Abandon the remainder rather than hanging the run.
		stuck := &ErrStuckGraph{Remaining: g.Len()}
		e.logger.Warn("Abandoning unreachable plan steps", "remaining", g.Len())
		g.Clear()
		return RoundResult{
			Stuck:  true,
			Events: []string{stuck.Error()},
		}
	}

	e.logger.Debug("Dispatching round", "ready", len(ready), "remaining", g.Len())

	calls := make([]trip.ToolCall, len(ready))
	sem := semaphore.NewWeighted(e.maxParallel)
	var wg sync.WaitGroup

	for i, step := range ready {
		wg.Add(1)
		go func(i int, step trip.PlanStep) {
			defer wg.Done()
			calls[i] = e.runStep(ctx, step, sem)
		}(i, step)
	}
	wg.Wait()

	result := RoundResult{Calls: calls}
	executed := make([]string, 0, len(ready))
	for _, tc := range calls {
		executed = append(executed, tc.ID)
		if tc.Error != "" {
			result.Events = append(result.Events,
				fmt.Sprintf("step %s (%s) failed: %s", tc.ID, tc.Tool, tc.Error))
		} else {
			result.Events = append(result.Events,
				fmt.Sprintf("step %s (%s) completed", tc.ID, tc.Tool))
		}
	}
	g.Remove(executed)

	return result
}

// runStep invokes one tool with timing and a per-step timeout. Errors,
// including timeouts, are absorbed into the ToolCall record.
func (e *Executor) runStep(ctx context.Context, step trip.PlanStep, sem *semaphore.Weighted) trip.ToolCall {
	tc := trip.ToolCall{
		ID:        step.ID,
		Tool:      step.Tool,
		Args:      step.Args,
		StartedAt: time.Now(),
	}

	finish := func(result string, err error) trip.ToolCall {
		now := time.Now()
		dur := float64(now.Sub(tc.StartedAt).Microseconds()) / 1000.0
		tc.CompletedAt = &now
		tc.DurationMS = &dur
		if err != nil {
			tc.Error = err.Error()
			e.logger.Warn("Step failed", "step", step.ID, "tool", step.Tool, "error", err)
		} else {
			tc.Result = result
			e.logger.Debug("Step completed", "step", step.ID, "tool", step.Tool, "duration_ms", dur)
		}
		return tc
	}

	if err := sem.Acquire(ctx, 1); err != nil {
		return finish("", fmt.Errorf("acquire execution slot: %w", err))
	}
	defer sem.Release(1)

	stepCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
	defer cancel()

	result, err := e.invoker.Invoke(stepCtx, step.Tool, step.Args)
	return finish(result, err)
}
