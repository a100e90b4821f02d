package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarerhq/wayfarer/reasoner"
	"github.com/wayfarerhq/wayfarer/scheduler"
	"github.com/wayfarerhq/wayfarer/store"
	"github.com/wayfarerhq/wayfarer/trip"
)

// stubReasoner drives the engine with canned planning artifacts. Synthesize
// walks the syntheses slice so multi-round behavior can be scripted; the
// last element repeats once exhausted.
type stubReasoner struct {
	mu sync.Mutex

	constraints    trip.Constraints
	constraintsErr error

	steps     []trip.PlanStep
	planErr   error
	syntheses []*reasoner.Synthesis
	synthErr  error
	answer    string

	synthCalls int
	priorSeen  []*trip.Itinerary
}

func (s *stubReasoner) ExtractConstraints(ctx context.Context, prompt string, previous *trip.Constraints) (trip.Constraints, error) {
	return s.constraints, s.constraintsErr
}

func (s *stubReasoner) Plan(ctx context.Context, prompt string, constraints trip.Constraints, catalog []trip.ToolSpec) ([]trip.PlanStep, error) {
	return s.steps, s.planErr
}

func (s *stubReasoner) Synthesize(ctx context.Context, prompt string, toolCalls []trip.ToolCall, constraints trip.Constraints, prior *trip.Itinerary) (*reasoner.Synthesis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.synthErr != nil {
		return nil, s.synthErr
	}
	s.priorSeen = append(s.priorSeen, prior)
	idx := s.synthCalls
	if idx >= len(s.syntheses) {
		idx = len(s.syntheses) - 1
	}
	s.synthCalls++
	return s.syntheses[idx], nil
}

func (s *stubReasoner) Narrate(ctx context.Context, itinerary *trip.Itinerary, citations []trip.Citation, decisions []string) (string, error) {
	return s.answer, nil
}

// okInvoker answers every tool call and records which tools ran.
type okInvoker struct {
	mu    sync.Mutex
	tools []string
}

func (i *okInvoker) Invoke(ctx context.Context, tool string, args map[string]any) (string, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tools = append(i.tools, tool)
	return "ok", nil
}

func cleanItinerary() *trip.Itinerary {
	return &trip.Itinerary{
		Days: []trip.Day{
			{Date: "", Activities: []trip.Activity{{Name: "Alfama walk", Description: "old town"}}},
		},
	}
}

func newTestEngine(r reasoner.Reasoner, inv scheduler.ToolInvoker, st store.Store, opts ...Option) *Engine {
	catalog := func() []trip.ToolSpec {
		return []trip.ToolSpec{{Name: "check_weather"}, {Name: "search_flights"}}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(r, inv, catalog, st, nil, append(opts, WithLogger(logger))...)
}

func TestPlanHappyPath(t *testing.T) {
	r := &stubReasoner{
		steps: []trip.PlanStep{
			{ID: "weather", Tool: "check_weather", Args: map[string]any{"location": "Lisbon"}},
			{ID: "flights", DependsOn: []string{"weather"}, Tool: "search_flights", Args: map[string]any{}},
		},
		syntheses: []*reasoner.Synthesis{{Itinerary: cleanItinerary(), Decisions: []string{"walk everywhere"}}},
		answer:    "# Lisbon\nEnjoy.",
	}
	inv := &okInvoker{}
	st := store.NewMemoryStore()
	e := newTestEngine(r, inv, st)

	var stages []Stage
	result, err := e.Plan(context.Background(), Request{SessionID: "s1", Prompt: "plan lisbon"}, func(stage Stage, msg string) {
		stages = append(stages, stage)
	})

	require.NoError(t, err)
	assert.Equal(t, trip.RunCompleted, result.Run.Status)
	assert.False(t, result.IsEdit)
	assert.Equal(t, "# Lisbon\nEnjoy.", result.Plan.AnswerMarkdown)
	require.NotNil(t, result.Plan.Itinerary)
	assert.Len(t, result.Run.ToolLog, 2)
	assert.Equal(t, []string{"check_weather", "search_flights"}, inv.tools)

	// A clean first validation never enters repair.
	assert.NotContains(t, stages, StageRepair)
	assert.Equal(t, []Stage{
		StageIntent, StagePlanner, StageExecutor, StageExecutor,
		StageSynthesizer, StageValidator, StageResponder,
	}, stages)

	// Terminal state is persisted.
	saved, err := st.GetRun(context.Background(), result.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, trip.RunCompleted, saved.Status)
}

func TestPlanEmptyPrompt(t *testing.T) {
	e := newTestEngine(&stubReasoner{}, &okInvoker{}, store.NewMemoryStore())

	_, err := e.Plan(context.Background(), Request{SessionID: "s1"}, nil)
	assert.Error(t, err)
}

func TestPlanRepairLoopConverges(t *testing.T) {
	budget := 100.0
	cost := 250.0
	overBudget := cleanItinerary()
	overBudget.TotalCostUSD = &cost

	r := &stubReasoner{
		constraints: trip.Constraints{BudgetUSD: &budget},
		steps:       []trip.PlanStep{{ID: "flights", Tool: "search_flights", Args: map[string]any{}}},
		syntheses: []*reasoner.Synthesis{
			{Itinerary: overBudget},
			{Itinerary: cleanItinerary()},
		},
		answer: "fixed",
	}
	inv := &okInvoker{}
	e := newTestEngine(r, inv, store.NewMemoryStore())

	var stages []Stage
	result, err := e.Plan(context.Background(), Request{SessionID: "s1", Prompt: "cheap lisbon"}, func(stage Stage, msg string) {
		stages = append(stages, stage)
	})

	require.NoError(t, err)
	assert.Equal(t, trip.RunCompleted, result.Run.Status)
	assert.Contains(t, stages, StageRepair)
	assert.Equal(t, 2, r.synthCalls)

	// The repair round invoked the budget adjuster emitted for the
	// violation, and its call landed in the tool log.
	assert.Contains(t, inv.tools, "budget_optimizer")

	// The second synthesis revised the first result.
	require.Len(t, r.priorSeen, 2)
	assert.Nil(t, r.priorSeen[0])
	assert.Equal(t, overBudget, r.priorSeen[1])
}

func TestPlanFailsAfterTransitionCeiling(t *testing.T) {
	budget := 100.0
	cost := 250.0
	overBudget := cleanItinerary()
	overBudget.TotalCostUSD = &cost

	r := &stubReasoner{
		constraints: trip.Constraints{BudgetUSD: &budget},
		steps:       []trip.PlanStep{{ID: "flights", Tool: "search_flights", Args: map[string]any{}}},
		// Never converges: every synthesis is still over budget.
		syntheses: []*reasoner.Synthesis{{Itinerary: overBudget}},
	}
	e := newTestEngine(r, &okInvoker{}, store.NewMemoryStore(), WithMaxTransitions(12))

	result, err := e.Plan(context.Background(), Request{SessionID: "s1", Prompt: "impossible"}, nil)

	require.NoError(t, err)
	assert.Equal(t, trip.RunFailed, result.Run.Status)
	assert.Equal(t, "plan did not converge after 12 stage transitions", result.Run.FailureReason)

	// Partial progress is preserved for the client.
	assert.Equal(t, overBudget, result.Run.PlanSnapshot)
	assert.Equal(t, overBudget, result.Plan.Itinerary)
}

func TestPlanInvalidPlanFailsRun(t *testing.T) {
	r := &stubReasoner{
		steps: []trip.PlanStep{
			{ID: "a", DependsOn: []string{"b"}, Tool: "check_weather"},
			{ID: "b", DependsOn: []string{"a"}, Tool: "search_flights"},
		},
	}
	e := newTestEngine(r, &okInvoker{}, store.NewMemoryStore())

	result, err := e.Plan(context.Background(), Request{SessionID: "s1", Prompt: "plan"}, nil)

	require.NoError(t, err)
	assert.Equal(t, trip.RunFailed, result.Run.Status)
	assert.Contains(t, result.Run.FailureReason, "planner stage failed")
	assert.Contains(t, result.Run.FailureReason, "the generated plan was invalid")
}

func TestPlanEmptyGraphSkipsExecution(t *testing.T) {
	r := &stubReasoner{
		steps:     nil, // nothing to look up
		syntheses: []*reasoner.Synthesis{{Itinerary: cleanItinerary()}},
		answer:    "done",
	}
	inv := &okInvoker{}
	e := newTestEngine(r, inv, store.NewMemoryStore())

	var stages []Stage
	result, err := e.Plan(context.Background(), Request{SessionID: "s1", Prompt: "plan"}, func(stage Stage, msg string) {
		stages = append(stages, stage)
	})

	require.NoError(t, err)
	assert.Equal(t, trip.RunCompleted, result.Run.Status)
	assert.Empty(t, inv.tools)
	assert.NotContains(t, stages, StageExecutor)
}

func TestPlanEditMergesConstraints(t *testing.T) {
	st := store.NewMemoryStore()
	budget := 2000.0
	require.NoError(t, st.SavePlan(context.Background(), &store.PlanRecord{
		ID:          "plan-1",
		Query:       "original trip",
		Constraints: trip.Constraints{BudgetUSD: &budget, StartDate: "2026-09-01"},
		Itinerary:   cleanItinerary(),
		CreatedAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}))

	newBudget := 1500.0
	r := &stubReasoner{
		constraints: trip.Constraints{BudgetUSD: &newBudget},
		syntheses:   []*reasoner.Synthesis{{Itinerary: cleanItinerary()}},
		answer:      "revised",
	}
	e := newTestEngine(r, &okInvoker{}, st)

	result, err := e.Plan(context.Background(), Request{SessionID: "s1", Prompt: "make it cheaper", PlanID: "plan-1"}, nil)

	require.NoError(t, err)
	assert.True(t, result.IsEdit)
	assert.Equal(t, "plan-1", result.Plan.ID)

	// Delta overrides budget; untouched fields survive the merge.
	require.NotNil(t, result.Plan.Constraints.BudgetUSD)
	assert.Equal(t, 1500.0, *result.Plan.Constraints.BudgetUSD)
	assert.Equal(t, "2026-09-01", result.Plan.Constraints.StartDate)

	// The stored itinerary is offered to synthesis as the revision base.
	require.Len(t, r.priorSeen, 1)
	assert.NotNil(t, r.priorSeen[0])

	// CreatedAt survives, UpdatedAt moves.
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), result.Plan.CreatedAt)
	assert.True(t, result.Plan.UpdatedAt.After(result.Plan.CreatedAt))
}

func TestPlanEditUnknownPlanStartsFresh(t *testing.T) {
	r := &stubReasoner{
		syntheses: []*reasoner.Synthesis{{Itinerary: cleanItinerary()}},
		answer:    "fresh",
	}
	e := newTestEngine(r, &okInvoker{}, store.NewMemoryStore())

	result, err := e.Plan(context.Background(), Request{SessionID: "s1", Prompt: "plan", PlanID: "ghost"}, nil)

	require.NoError(t, err)
	assert.False(t, result.IsEdit)
	assert.Equal(t, "ghost", result.Plan.ID)
	assert.Equal(t, trip.RunCompleted, result.Run.Status)
}

func TestPlanIntentFailureIsTolerated(t *testing.T) {
	r := &stubReasoner{
		constraintsErr: context.DeadlineExceeded,
		syntheses:      []*reasoner.Synthesis{{Itinerary: cleanItinerary()}},
		answer:         "ok anyway",
	}
	e := newTestEngine(r, &okInvoker{}, store.NewMemoryStore())

	result, err := e.Plan(context.Background(), Request{SessionID: "s1", Prompt: "plan"}, nil)

	require.NoError(t, err)
	assert.Equal(t, trip.RunCompleted, result.Run.Status)
}

func TestPlanCancelledContextFailsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &stubReasoner{syntheses: []*reasoner.Synthesis{{Itinerary: cleanItinerary()}}}
	st := store.NewMemoryStore()
	e := newTestEngine(r, &okInvoker{}, st)

	result, err := e.Plan(ctx, Request{SessionID: "s1", Prompt: "plan"}, nil)

	require.NoError(t, err)
	assert.Equal(t, trip.RunFailed, result.Run.Status)
	assert.Equal(t, "request cancelled before completion", result.Run.FailureReason)

	// Terminal bookkeeping still lands despite the dead request context.
	saved, getErr := st.GetRun(context.Background(), result.Run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, trip.RunFailed, saved.Status)
}

func TestStatusPhrases(t *testing.T) {
	assert.Equal(t, "Understanding your request", StageIntent.StatusPhrase())
	assert.Equal(t, "Adjusting the plan", StageRepair.StatusPhrase())
	assert.Equal(t, "custom", Stage("custom").StatusPhrase())
}
