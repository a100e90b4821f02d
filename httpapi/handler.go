package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wayfarerhq/wayfarer/engine"
	"github.com/wayfarerhq/wayfarer/store"
)

// maxRequestBody bounds plan request bodies.
const maxRequestBody = 1 << 20 // 1MB

// Planner runs one planning request to a terminal state. Implemented by
// engine.Engine; extracted so handler tests can stub it.
type Planner interface {
	Plan(ctx context.Context, req engine.Request, notify engine.Notifier) (*engine.Result, error)
}

// Handler serves the planning API.
type Handler struct {
	planner Planner
	runs    store.RunStore
	metrics http.Handler
	logger  *slog.Logger
}

// NewHandler creates the API handler. metrics may be nil to omit the
// /metrics route.
func NewHandler(planner Planner, runs store.RunStore, metrics http.Handler, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		planner: planner,
		runs:    runs,
		metrics: metrics,
		logger:  logger,
	}
}

// Routes returns the API mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/plan", h.handlePlan)
	mux.HandleFunc("POST /v1/plan/stream", h.handlePlanStream)
	mux.HandleFunc("GET /v1/runs/{id}", h.handleGetRun)
	mux.HandleFunc("GET /healthz", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}
	return mux
}

// handlePlan runs a request to completion and returns the full response.
func (h *Handler) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePlanRequest(w, r)
	if !ok {
		return
	}

	result, err := h.planner.Plan(r.Context(), engine.Request{
		SessionID: req.DestinationID,
		Prompt:    req.Prompt,
		PlanID:    req.PlanID,
	}, nil)
	if err != nil {
		h.logger.Error("Plan request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "planning failed")
		return
	}

	h.writeJSON(w, http.StatusOK, buildPlanResponse(result))
}

// handlePlanStream runs a request while relaying stage transitions as
// server-sent events, terminated by a [DONE] sentinel.
func (h *Handler) handlePlanStream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodePlanRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The notifier runs on the request goroutine, so writes need no lock.
	notify := func(stage engine.Stage, message string) {
		h.sendEvent(w, flusher, streamEvent{
			Type:    eventStatus,
			Stage:   string(stage),
			Message: message,
		})
	}

	result, err := h.planner.Plan(r.Context(), engine.Request{
		SessionID: req.DestinationID,
		Prompt:    req.Prompt,
		PlanID:    req.PlanID,
	}, notify)

	switch {
	case err != nil:
		h.logger.Error("Streaming plan request failed", "error", err)
		h.sendEvent(w, flusher, streamEvent{Type: eventError, Message: "planning failed"})
	case result.Run.FailureReason != "":
		plan := buildPlanResponse(result)
		h.sendEvent(w, flusher, streamEvent{Type: eventError, Message: result.Run.FailureReason, Plan: &plan})
	default:
		plan := buildPlanResponse(result)
		h.sendEvent(w, flusher, streamEvent{
			Type:   eventPlanComplete,
			PlanID: plan.PlanID,
			IsEdit: result.IsEdit,
			Plan:   &plan,
		})
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// handleGetRun returns the stored record of one run.
func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	run, err := h.runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		h.logger.Error("Run lookup failed", "run_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "run lookup failed")
		return
	}

	h.writeJSON(w, http.StatusOK, run)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodePlanRequest(w http.ResponseWriter, r *http.Request) (PlanRequest, bool) {
	var req PlanRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	if req.Prompt == "" {
		h.writeError(w, http.StatusBadRequest, "prompt is required")
		return req, false
	}
	return req, true
}

func (h *Handler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event streamEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to encode stream event", "error", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// NewServer wraps the handler in an http.Server with sane timeouts. Write
// timeout stays unset: streaming responses are open-ended.
func NewServer(addr string, handler http.Handler, readTimeout time.Duration) *http.Server {
	if readTimeout == 0 {
		readTimeout = 30 * time.Second
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
