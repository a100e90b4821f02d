package reasoner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/wayfarerhq/wayfarer/llm"
	"github.com/wayfarerhq/wayfarer/trip"
)

// maxFormatRetries is the total number of LLM attempts when a response
// isn't parseable. The parse error is fed back as a correction prompt on
// each retry so the model can fix its output format.
const maxFormatRetries = 3

// completer is the subset of the llm client the reasoner needs. Extracted
// as an interface to enable testing with canned responses.
type completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// LLMReasoner implements Reasoner on the capability-addressed llm client.
type LLMReasoner struct {
	client completer
	logger *slog.Logger
}

// Option configures an LLMReasoner.
type Option func(*LLMReasoner)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *LLMReasoner) { r.logger = logger }
}

// New creates an LLM-backed reasoner.
func New(client *llm.Client, opts ...Option) *LLMReasoner {
	r := &LLMReasoner{
		client: client,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ExtractConstraints pulls a constraints delta from the prompt. On any
// failure the zero delta is returned with the error; callers may choose to
// proceed with prior constraints.
func (r *LLMReasoner) ExtractConstraints(ctx context.Context, prompt string, previous *trip.Constraints) (trip.Constraints, error) {
	messages := []llm.Message{
		{Role: "system", Content: constraintsSystemPrompt},
	}
	if previous != nil {
		prior, err := json.Marshal(previous)
		if err == nil {
			messages = append(messages, llm.Message{
				Role:    "system",
				Content: "The user is editing an existing plan. Current constraints: " + string(prior) + "\nExtract only what this message changes; leave everything else null or empty.",
			})
		}
	}
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	var delta trip.Constraints
	err := r.completeJSON(ctx, llm.CapabilityFast, messages, objectShape, &delta)
	if err != nil {
		return trip.Constraints{}, fmt.Errorf("extract constraints: %w", err)
	}
	return delta, nil
}

// Plan decomposes the request into tool steps.
func (r *LLMReasoner) Plan(ctx context.Context, prompt string, constraints trip.Constraints, catalog []trip.ToolSpec) ([]trip.PlanStep, error) {
	constraintsJSON, _ := json.Marshal(constraints)
	messages := []llm.Message{
		{Role: "system", Content: planSystemPrompt + "\n\nAvailable tools:\n" + renderToolCatalog(catalog)},
		{Role: "system", Content: "Known constraints: " + string(constraintsJSON)},
		{Role: "user", Content: prompt},
	}

	var steps []trip.PlanStep
	if err := r.completeJSON(ctx, llm.CapabilityPlanning, messages, arrayShape, &steps); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}

	r.logger.Debug("Plan produced", "steps", len(steps))
	return steps, nil
}

// synthesisPayload is the wire shape of a synthesis response.
type synthesisPayload struct {
	Itinerary *trip.Itinerary `json:"itinerary"`
	Citations []trip.Citation `json:"citations"`
	Decisions []string        `json:"decisions"`
}

// Synthesize fuses tool results into a complete itinerary.
func (r *LLMReasoner) Synthesize(ctx context.Context, prompt string, toolCalls []trip.ToolCall, constraints trip.Constraints, prior *trip.Itinerary) (*Synthesis, error) {
	constraintsJSON, _ := json.Marshal(constraints)
	messages := []llm.Message{
		{Role: "system", Content: synthesizeSystemPrompt},
		{Role: "system", Content: "Constraints: " + string(constraintsJSON)},
		{Role: "system", Content: "Tool results:\n" + renderToolResults(toolCalls)},
	}
	if prior != nil {
		priorJSON, err := json.Marshal(prior)
		if err == nil {
			messages = append(messages, llm.Message{
				Role:    "system",
				Content: "Revise this existing itinerary rather than starting over: " + string(priorJSON),
			})
		}
	}
	messages = append(messages, llm.Message{Role: "user", Content: prompt})

	var payload synthesisPayload
	if err := r.completeJSON(ctx, llm.CapabilityPlanning, messages, objectShape, &payload); err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	if payload.Itinerary == nil {
		return nil, fmt.Errorf("synthesize: response contained no itinerary")
	}

	return &Synthesis{
		Itinerary: payload.Itinerary,
		Citations: payload.Citations,
		Decisions: payload.Decisions,
	}, nil
}

// Narrate renders the final markdown answer.
func (r *LLMReasoner) Narrate(ctx context.Context, itinerary *trip.Itinerary, citations []trip.Citation, decisions []string) (string, error) {
	itineraryJSON, err := json.Marshal(itinerary)
	if err != nil {
		return "", fmt.Errorf("narrate: marshal itinerary: %w", err)
	}
	citationsJSON, _ := json.Marshal(citations)
	decisionsJSON, _ := json.Marshal(decisions)

	resp, err := r.client.Complete(ctx, llm.Request{
		Capability: llm.CapabilityWriting,
		Messages: []llm.Message{
			{Role: "system", Content: narrateSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Itinerary: %s\nCitations: %s\nDecisions: %s",
				itineraryJSON, citationsJSON, decisionsJSON)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("narrate: %w", err)
	}
	return resp.Content, nil
}

// jsonShape selects which extraction to apply to model output.
type jsonShape int

const (
	objectShape jsonShape = iota
	arrayShape
)

// completeJSON runs a completion and unmarshals the extracted JSON into
// out, feeding parse errors back to the model for a bounded number of
// format retries.
func (r *LLMReasoner) completeJSON(ctx context.Context, capability llm.Capability, messages []llm.Message, shape jsonShape, out any) error {
	var lastErr error

	for attempt := 1; attempt <= maxFormatRetries; attempt++ {
		resp, err := r.client.Complete(ctx, llm.Request{
			Capability: capability,
			Messages:   messages,
		})
		if err != nil {
			return err
		}

		var raw string
		if shape == arrayShape {
			raw = llm.ExtractJSONArray(resp.Content)
		} else {
			raw = llm.ExtractJSON(resp.Content)
		}
		if raw == "" {
			lastErr = fmt.Errorf("no JSON found in response")
		} else if err := json.Unmarshal([]byte(raw), out); err != nil {
			lastErr = err
		} else {
			return nil
		}

		r.logger.Warn("Unparseable model output, retrying",
			"attempt", attempt, "capability", capability, "error", lastErr)

		// Feed the failure back so the model can correct its format.
		messages = append(messages,
			llm.Message{Role: "assistant", Content: resp.Content},
			llm.Message{Role: "user", Content: fmt.Sprintf(
				"Your previous response could not be parsed (%v). Respond again with only valid JSON.", lastErr)},
		)
	}

	return fmt.Errorf("unparseable model output after %d attempts: %w", maxFormatRetries, lastErr)
}
