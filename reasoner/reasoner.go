// Package reasoner defines the natural-language reasoning contract used by
// the orchestration engine and implements it on top of the llm client. The
// engine never sees prompts or model output parsing; it consumes structured
// constraints, plan steps, itineraries, and narratives.
package reasoner

import (
	"context"

	"github.com/wayfarerhq/wayfarer/trip"
)

// Synthesis is the structured result of one synthesis round. The itinerary
// replaces any prior one wholesale.
type Synthesis struct {
	Itinerary *trip.Itinerary
	Citations []trip.Citation
	Decisions []string
}

// Reasoner produces structured planning artifacts from natural-language
// context. Implementations are expected to be safe for concurrent use by
// independent runs.
type Reasoner interface {
	// ExtractConstraints pulls a constraints delta from the user prompt.
	// previous, when non-nil, is offered as context for edit requests; the
	// returned delta is merged by the caller, never here.
	ExtractConstraints(ctx context.Context, prompt string, previous *trip.Constraints) (trip.Constraints, error)

	// Plan decomposes the request into a dependency graph of tool steps.
	Plan(ctx context.Context, prompt string, constraints trip.Constraints, catalog []trip.ToolSpec) ([]trip.PlanStep, error)

	// Synthesize fuses accumulated tool results into an itinerary with
	// citations and decision rationales. prior, when non-nil, is the
	// itinerary being revised.
	Synthesize(ctx context.Context, prompt string, toolCalls []trip.ToolCall, constraints trip.Constraints, prior *trip.Itinerary) (*Synthesis, error)

	// Narrate renders the final markdown write-up.
	Narrate(ctx context.Context, itinerary *trip.Itinerary, citations []trip.Citation, decisions []string) (string, error)
}
