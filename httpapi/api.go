// Package httpapi exposes the planning engine over HTTP: a batch endpoint,
// a server-sent-events streaming endpoint, run lookup, health, and metrics.
package httpapi

import (
	"time"

	"github.com/wayfarerhq/wayfarer/engine"
	"github.com/wayfarerhq/wayfarer/store"
	"github.com/wayfarerhq/wayfarer/trip"
)

// PlanRequest is the body of both the batch and streaming endpoints.
type PlanRequest struct {
	// DestinationID groups requests belonging to one client conversation.
	DestinationID string `json:"destination_id"`

	// Prompt is the traveler's natural-language request.
	Prompt string `json:"prompt"`

	// PlanID, when present, edits the referenced plan instead of starting
	// a new one.
	PlanID string `json:"plan_id,omitempty"`
}

// PlanResponse is the terminal payload of a run.
type PlanResponse struct {
	PlanID         string           `json:"plan_id"`
	Query          string           `json:"query"`
	AnswerMarkdown string           `json:"answer_markdown,omitempty"`
	Itinerary      *trip.Itinerary  `json:"itinerary,omitempty"`
	Citations      []trip.Citation  `json:"citations,omitempty"`
	ToolsUsed      []trip.ToolUsage `json:"tools_used,omitempty"`
	Decisions      []string         `json:"decisions,omitempty"`
	Status         string           `json:"status"`
	FailureReason  string           `json:"failure_reason,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// buildPlanResponse assembles the client payload from a terminal result.
func buildPlanResponse(result *engine.Result) PlanResponse {
	plan := result.Plan
	if plan == nil {
		plan = &store.PlanRecord{}
	}
	return PlanResponse{
		PlanID:         plan.ID,
		Query:          plan.Query,
		AnswerMarkdown: plan.AnswerMarkdown,
		Itinerary:      plan.Itinerary,
		Citations:      plan.Citations,
		ToolsUsed:      trip.AggregateToolUsage(result.Run.ToolLog),
		Decisions:      plan.Decisions,
		Status:         string(result.Run.Status),
		FailureReason:  result.Run.FailureReason,
		CreatedAt:      plan.CreatedAt,
	}
}

// Streaming event types.
const (
	eventStatus       = "status"
	eventPlanComplete = "plan_complete"
	eventError        = "error"
)

// streamEvent is one SSE payload. Exactly the fields for its type are set.
type streamEvent struct {
	Type    string        `json:"type"`
	Stage   string        `json:"stage,omitempty"`
	Message string        `json:"message,omitempty"`
	PlanID  string        `json:"plan_id,omitempty"`
	IsEdit  bool          `json:"is_edit,omitempty"`
	Plan    *PlanResponse `json:"plan,omitempty"`
}
