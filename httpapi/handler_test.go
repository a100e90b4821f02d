package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarerhq/wayfarer/engine"
	"github.com/wayfarerhq/wayfarer/store"
	"github.com/wayfarerhq/wayfarer/trip"
)

// stubPlanner returns a canned result and replays scripted stage
// notifications before finishing.
type stubPlanner struct {
	result *engine.Result
	err    error
	stages []engine.Stage
	last   engine.Request
}

func (p *stubPlanner) Plan(ctx context.Context, req engine.Request, notify engine.Notifier) (*engine.Result, error) {
	p.last = req
	if notify != nil {
		for _, stage := range p.stages {
			notify(stage, stage.StatusPhrase())
		}
	}
	return p.result, p.err
}

func completedResult() *engine.Result {
	return &engine.Result{
		Run: &trip.Run{
			ID:     "run-1",
			Status: trip.RunCompleted,
			ToolLog: []trip.ToolCall{
				{ID: "a", Tool: "check_weather", Result: "sunny"},
				{ID: "b", Tool: "check_weather", Result: "still sunny"},
			},
		},
		Plan: &store.PlanRecord{
			ID:             "plan-1",
			Query:          "plan lisbon",
			AnswerMarkdown: "# Lisbon",
			Itinerary:      &trip.Itinerary{Days: []trip.Day{{Activities: []trip.Activity{{Name: "walk"}}}}},
		},
	}
}

func newTestHandler(p Planner, runs store.RunStore) *Handler {
	return NewHandler(p, runs, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func doRequest(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHandlePlan(t *testing.T) {
	p := &stubPlanner{result: completedResult()}
	h := newTestHandler(p, store.NewMemoryStore())

	rec := doRequest(t, h, http.MethodPost, "/v1/plan",
		`{"destination_id": "sess-1", "prompt": "plan lisbon"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp PlanResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "plan-1", resp.PlanID)
	assert.Equal(t, "# Lisbon", resp.AnswerMarkdown)
	assert.Equal(t, "completed", resp.Status)
	require.Len(t, resp.ToolsUsed, 1)
	assert.Equal(t, "check_weather", resp.ToolsUsed[0].Tool)
	assert.Equal(t, 2, resp.ToolsUsed[0].Invocations)

	assert.Equal(t, "sess-1", p.last.SessionID)
	assert.Equal(t, "plan lisbon", p.last.Prompt)
}

func TestHandlePlanValidation(t *testing.T) {
	h := newTestHandler(&stubPlanner{result: completedResult()}, store.NewMemoryStore())

	rec := doRequest(t, h, http.MethodPost, "/v1/plan", `{"destination_id": "sess-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "prompt is required")

	rec = doRequest(t, h, http.MethodPost, "/v1/plan", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlePlanEngineError(t *testing.T) {
	h := newTestHandler(&stubPlanner{err: context.DeadlineExceeded}, store.NewMemoryStore())

	rec := doRequest(t, h, http.MethodPost, "/v1/plan", `{"prompt": "plan"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// parseSSE splits an event-stream body into its data payloads.
func parseSSE(t *testing.T, body string) []string {
	t.Helper()
	var payloads []string
	for _, line := range strings.Split(body, "\n") {
		if after, ok := strings.CutPrefix(line, "data: "); ok {
			payloads = append(payloads, after)
		}
	}
	return payloads
}

func TestHandlePlanStream(t *testing.T) {
	p := &stubPlanner{
		result: completedResult(),
		stages: []engine.Stage{engine.StageIntent, engine.StagePlanner},
	}
	h := newTestHandler(p, store.NewMemoryStore())

	rec := doRequest(t, h, http.MethodPost, "/v1/plan/stream", `{"prompt": "plan lisbon"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	payloads := parseSSE(t, rec.Body.String())
	require.Len(t, payloads, 4) // two status, one plan_complete, [DONE]
	assert.Equal(t, "[DONE]", payloads[len(payloads)-1])

	var status streamEvent
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &status))
	assert.Equal(t, "status", status.Type)
	assert.Equal(t, "intent", status.Stage)
	assert.Equal(t, "Understanding your request", status.Message)

	var complete streamEvent
	require.NoError(t, json.Unmarshal([]byte(payloads[2]), &complete))
	assert.Equal(t, "plan_complete", complete.Type)
	assert.Equal(t, "plan-1", complete.PlanID)
	require.NotNil(t, complete.Plan)
	assert.Equal(t, "# Lisbon", complete.Plan.AnswerMarkdown)
}

func TestHandlePlanStreamFailedRun(t *testing.T) {
	failed := completedResult()
	failed.Run.Status = trip.RunFailed
	failed.Run.FailureReason = "plan did not converge after 20 stage transitions"
	h := newTestHandler(&stubPlanner{result: failed}, store.NewMemoryStore())

	rec := doRequest(t, h, http.MethodPost, "/v1/plan/stream", `{"prompt": "impossible"}`)

	payloads := parseSSE(t, rec.Body.String())
	require.NotEmpty(t, payloads)

	var event streamEvent
	require.NoError(t, json.Unmarshal([]byte(payloads[0]), &event))
	assert.Equal(t, "error", event.Type)
	assert.Contains(t, event.Message, "did not converge")
	// The partial plan still rides along so clients can show progress.
	require.NotNil(t, event.Plan)
	assert.NotNil(t, event.Plan.Itinerary)

	assert.Equal(t, "[DONE]", payloads[len(payloads)-1])
}

func TestHandleGetRun(t *testing.T) {
	runs := store.NewMemoryStore()
	require.NoError(t, runs.SaveRun(context.Background(), &trip.Run{
		ID:     "run-1",
		Status: trip.RunCompleted,
	}))
	h := newTestHandler(&stubPlanner{}, runs)

	rec := doRequest(t, h, http.MethodGet, "/v1/runs/run-1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var run trip.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, trip.RunCompleted, run.Status)

	rec = doRequest(t, h, http.MethodGet, "/v1/runs/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	h := newTestHandler(&stubPlanner{}, store.NewMemoryStore())

	rec := doRequest(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestMetricsRouteOptional(t *testing.T) {
	h := newTestHandler(&stubPlanner{}, store.NewMemoryStore())
	rec := doRequest(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	withMetrics := NewHandler(&stubPlanner{}, store.NewMemoryStore(),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}), slog.New(slog.NewTextHandler(io.Discard, nil)))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	withMetrics.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
