// Package engine drives one planning run through the orchestration state
// machine: intent extraction, planning, scheduled tool execution, synthesis,
// validation, repair rounds, and the final narrated response.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wayfarerhq/wayfarer/events"
	"github.com/wayfarerhq/wayfarer/metrics"
	"github.com/wayfarerhq/wayfarer/reasoner"
	"github.com/wayfarerhq/wayfarer/repair"
	"github.com/wayfarerhq/wayfarer/scheduler"
	"github.com/wayfarerhq/wayfarer/store"
	"github.com/wayfarerhq/wayfarer/trip"
	"github.com/wayfarerhq/wayfarer/verify"
)

// defaultMaxTransitions bounds total stage transitions per run so repair
// loops always terminate.
const defaultMaxTransitions = 20

// Request is one planning request.
type Request struct {
	// SessionID groups runs belonging to one client conversation.
	SessionID string

	// Prompt is the user's natural-language request.
	Prompt string

	// PlanID, when set, asks for an edit of a previously completed plan.
	PlanID string

	// Owner is an optional requester identity, recorded on the run.
	Owner string
}

// Result is the terminal outcome of a run. Run.Status distinguishes success
// from failure; Plan is the saved plan record, partial on failure.
type Result struct {
	Run    *trip.Run
	Plan   *store.PlanRecord
	IsEdit bool
}

// Notifier receives stage-transition phrases as the run progresses. Used by
// the streaming transport; may be nil.
type Notifier func(stage Stage, message string)

// Engine orchestrates planning runs. Safe for concurrent use: each run
// carries its own state and the store guards shared persistence.
type Engine struct {
	reasoner reasoner.Reasoner
	executor *scheduler.Executor
	catalog  func() []trip.ToolSpec
	store    store.Store

	events  *events.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger

	maxTransitions int
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxTransitions sets the stage transition ceiling.
func WithMaxTransitions(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTransitions = n
		}
	}
}

// WithEvents sets the lifecycle event publisher.
func WithEvents(p *events.Publisher) Option {
	return func(e *Engine) { e.events = p }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New creates an engine. catalog supplies the tool specs offered to the
// planner; invoker executes them.
func New(r reasoner.Reasoner, invoker scheduler.ToolInvoker, catalog func() []trip.ToolSpec, st store.Store, schedOpts []scheduler.ExecutorOption, opts ...Option) *Engine {
	e := &Engine{
		reasoner:       r,
		catalog:        catalog,
		store:          st,
		logger:         slog.Default(),
		maxTransitions: defaultMaxTransitions,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.executor = scheduler.NewExecutor(invoker, append(schedOpts, scheduler.WithLogger(e.logger))...)
	return e
}

// state is the working memory of one run, mutated stage by stage.
type state struct {
	prompt      string
	constraints trip.Constraints
	prior       *trip.Itinerary

	graph     *scheduler.Graph
	completed map[string]bool
	calls     []trip.ToolCall

	itinerary    *trip.Itinerary
	citations    []trip.Citation
	decisions    []string
	violations   []trip.Violation
	answer       string
	repairRounds int
}

// Plan executes one run to a terminal state. The returned error covers
// request and persistence problems only; run-level failures are reported
// through Result.Run.Status and FailureReason.
func (e *Engine) Plan(ctx context.Context, req Request, notify Notifier) (*Result, error) {
	if req.Prompt == "" {
		return nil, errors.New("empty prompt")
	}

	planID := req.PlanID
	isEdit := false
	var priorRecord *store.PlanRecord

	if planID != "" {
		record, err := e.store.GetPlan(ctx, planID)
		switch {
		case err == nil:
			priorRecord = record
			isEdit = true
		case errors.Is(err, store.ErrNotFound):
			// Unknown plan id: treat as a fresh plan under that id.
			e.logger.Warn("Edit requested for unknown plan, starting fresh", "plan_id", planID)
		default:
			return nil, fmt.Errorf("load plan %s: %w", planID, err)
		}
	}
	if planID == "" {
		planID = uuid.NewString()
	}

	run := &trip.Run{
		ID:        uuid.NewString(),
		SessionID: req.SessionID,
		Owner:     req.Owner,
		Status:    trip.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := e.store.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("save run: %w", err)
	}

	st := &state{
		prompt:    req.Prompt,
		completed: make(map[string]bool),
	}
	if priorRecord != nil {
		st.constraints = priorRecord.Constraints
		st.prior = priorRecord.Itinerary
	}

	e.logger.Info("Run started", "run_id", run.ID, "plan_id", planID, "edit", isEdit)

	current := StageIntent
	transitions := 0
	var failure string

	for current != stageDone && failure == "" {
		// A disconnected client skips remaining stages; in-flight work of
		// the previous round has already joined at its barrier.
		if err := ctx.Err(); err != nil {
			failure = "request cancelled before completion"
			break
		}

		transitions++
		if transitions > e.maxTransitions {
			failure = fmt.Sprintf("plan did not converge after %d stage transitions", e.maxTransitions)
			break
		}

		e.emit(run.ID, current, notify)

		next, err := e.runStage(ctx, current, st, priorRecord)
		if err != nil {
			e.logger.Error("Stage failed", "run_id", run.ID, "stage", current, "error", err)
			failure = fmt.Sprintf("%s stage failed: %s", current, reasonOf(err))
			break
		}
		current = next
	}

	e.finish(ctx, run, st, failure)

	plan := e.savePlan(ctx, planID, req.Prompt, st, priorRecord)

	if e.metrics != nil {
		e.metrics.ObserveRun(string(run.Status), time.Since(run.StartedAt))
		e.metrics.ObserveRepairRounds(st.repairRounds)
	}
	e.logger.Info("Run finished", "run_id", run.ID, "status", run.Status,
		"transitions", transitions, "repair_rounds", st.repairRounds)

	return &Result{Run: run, Plan: plan, IsEdit: isEdit}, nil
}

// runStage executes one stage body and returns the next stage. Panics are
// converted to errors so a stage bug fails the run, not the process.
func (e *Engine) runStage(ctx context.Context, current Stage, st *state, prior *store.PlanRecord) (next Stage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	switch current {
	case StageIntent:
		return e.stageIntent(ctx, st, prior)
	case StagePlanner:
		return e.stagePlanner(ctx, st)
	case StageExecutor:
		return e.stageExecutor(ctx, st)
	case StageSynthesizer:
		return e.stageSynthesizer(ctx, st)
	case StageValidator:
		return e.stageValidator(st)
	case StageRepair:
		return e.stageRepair(st)
	case StageResponder:
		return e.stageResponder(ctx, st)
	default:
		return stageDone, fmt.Errorf("unknown stage %q", current)
	}
}

// stageIntent extracts a constraints delta and merges it over any prior
// constraints. Extraction failure is tolerated: the run proceeds with the
// constraints it already has.
func (e *Engine) stageIntent(ctx context.Context, st *state, prior *store.PlanRecord) (Stage, error) {
	var previous *trip.Constraints
	if prior != nil {
		previous = &prior.Constraints
	}

	delta, err := e.reasoner.ExtractConstraints(ctx, st.prompt, previous)
	if err != nil {
		e.logger.Warn("Constraint extraction failed, proceeding with prior constraints", "error", err)
		delta = trip.Constraints{}
	}
	st.constraints = trip.MergeConstraints(previous, delta)
	return StagePlanner, nil
}

// stagePlanner asks the reasoner for a task graph and validates it.
func (e *Engine) stagePlanner(ctx context.Context, st *state) (Stage, error) {
	steps, err := e.reasoner.Plan(ctx, st.prompt, st.constraints, e.catalog())
	if err != nil {
		return stageDone, err
	}

	graph, err := scheduler.NewGraph(steps)
	if err != nil {
		return stageDone, err
	}
	st.graph = graph

	if graph.Len() == 0 {
		return StageSynthesizer, nil
	}
	return StageExecutor, nil
}

// stageExecutor runs one scheduling round. The stage re-enters itself until
// the graph drains.
func (e *Engine) stageExecutor(ctx context.Context, st *state) (Stage, error) {
	round := e.executor.ExecuteReady(ctx, st.graph, st.completed)
	for _, tc := range round.Calls {
		st.completed[tc.ID] = true
		st.calls = append(st.calls, tc)
	}
	for _, event := range round.Events {
		e.logger.Debug("Round event", "event", event)
	}

	if st.graph.Len() > 0 {
		return StageExecutor, nil
	}
	return StageSynthesizer, nil
}

// stageSynthesizer fuses accumulated tool results into an itinerary.
func (e *Engine) stageSynthesizer(ctx context.Context, st *state) (Stage, error) {
	syn, err := e.reasoner.Synthesize(ctx, st.prompt, st.calls, st.constraints, st.prior)
	if err != nil {
		return stageDone, err
	}
	st.itinerary = syn.Itinerary
	st.citations = syn.Citations
	st.decisions = syn.Decisions
	// Later synthesis rounds revise this result rather than starting over.
	st.prior = syn.Itinerary
	return StageValidator, nil
}

// stageValidator checks the itinerary against the active constraints.
func (e *Engine) stageValidator(st *state) (Stage, error) {
	st.violations = verify.Check(st.itinerary, st.constraints, time.Now())
	if len(st.violations) == 0 {
		return StageResponder, nil
	}
	e.logger.Info("Validation found violations", "count", len(st.violations))
	return StageRepair, nil
}

// stageRepair appends one repair step per violation as a fresh ready layer.
func (e *Engine) stageRepair(st *state) (Stage, error) {
	st.repairRounds++
	steps := repair.Generate(st.violations)
	if err := st.graph.Add(steps); err != nil {
		return stageDone, err
	}
	return StageExecutor, nil
}

// stageResponder narrates the final answer and ends the run.
func (e *Engine) stageResponder(ctx context.Context, st *state) (Stage, error) {
	answer, err := e.reasoner.Narrate(ctx, st.itinerary, st.citations, st.decisions)
	if err != nil {
		return stageDone, err
	}
	st.answer = answer
	return stageDone, nil
}

// emit publishes one stage transition to metrics, the event bus, and the
// streaming notifier, in that order, before the stage body runs.
func (e *Engine) emit(runID string, stage Stage, notify Notifier) {
	phrase := stage.StatusPhrase()
	if e.metrics != nil {
		e.metrics.ObserveStage(string(stage))
	}
	e.events.Publish(runID, string(stage), phrase)
	if notify != nil {
		notify(stage, phrase)
	}
}

// finish closes out run bookkeeping. The best available itinerary is
// preserved on failure so clients can see partial progress.
func (e *Engine) finish(ctx context.Context, run *trip.Run, st *state, failure string) {
	now := time.Now().UTC()
	run.EndedAt = &now
	run.ToolLog = st.calls
	run.PlanSnapshot = st.itinerary

	if failure != "" {
		run.Status = trip.RunFailed
		run.FailureReason = failure
	} else {
		run.Status = trip.RunCompleted
	}

	// Persist with a fresh context: the request context may already be
	// cancelled and terminal bookkeeping must still land.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.store.SaveRun(saveCtx, run); err != nil {
		e.logger.Error("Failed to persist terminal run state", "run_id", run.ID, "error", err)
	}

	e.events.Publish(run.ID, string(run.Status), run.FailureReason)
}

// savePlan persists the plan record keyed by plan id so later requests can
// edit it. Failed runs with no itinerary keep the prior record intact.
func (e *Engine) savePlan(ctx context.Context, planID, query string, st *state, prior *store.PlanRecord) *store.PlanRecord {
	record := &store.PlanRecord{
		ID:             planID,
		Query:          query,
		Constraints:    st.constraints,
		Itinerary:      st.itinerary,
		Citations:      st.citations,
		Decisions:      st.decisions,
		AnswerMarkdown: st.answer,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	if prior != nil {
		record.CreatedAt = prior.CreatedAt
		if record.Itinerary == nil {
			record.Itinerary = prior.Itinerary
		}
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.store.SavePlan(saveCtx, record); err != nil {
		e.logger.Error("Failed to persist plan", "plan_id", planID, "error", err)
	}
	return record
}

// reasonOf strips error chains down to a short user-facing phrase.
func reasonOf(err error) string {
	var invalid *scheduler.InvalidPlanError
	if errors.As(err, &invalid) {
		return "the generated plan was invalid: " + invalid.Reason
	}
	return err.Error()
}
