package tools

import (
	"context"
	"fmt"

	"github.com/wayfarerhq/wayfarer/llm"
	"github.com/wayfarerhq/wayfarer/repair"
	"github.com/wayfarerhq/wayfarer/trip"
)

// adjuster is a violation-specific repair tool. Each one prompts the model
// with a focused instruction; the advice it returns feeds the next
// synthesis round.
type adjuster struct {
	name        string
	description string
	instruction string
	client      completer
}

func (a *adjuster) Spec() trip.ToolSpec {
	return trip.ToolSpec{
		Name:        a.name,
		Description: a.description,
		Args: map[string]string{
			"violation": "string, the violation to resolve",
		},
	}
}

func (a *adjuster) Execute(ctx context.Context, args map[string]any) (string, error) {
	violation, err := stringArg(args, "violation")
	if err != nil {
		return "", err
	}

	resp, err := a.client.Complete(ctx, llm.Request{
		Capability: llm.CapabilityFast,
		Messages: []llm.Message{
			{Role: "system", Content: a.instruction},
			{Role: "user", Content: "Violation: " + violation},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", a.name, err)
	}
	return resp.Content, nil
}

// NewRepairTools builds the full set of repair adjusters. Their names match
// the tools the repair planner emits steps for.
func NewRepairTools(client completer) []Tool {
	defs := []struct {
		name        string
		description string
		instruction string
	}{
		{
			name:        repair.ToolBudgetOptimizer,
			description: "Propose cost reductions that bring an itinerary back under budget.",
			instruction: "You reduce travel costs. Given a budget violation, propose specific substitutions and cuts (cheaper lodging, fewer paid activities, free alternatives) that close the gap while preserving the trip's character. Plain text.",
		},
		{
			name:        repair.ToolScheduleOptimizer,
			description: "Rebalance overloaded days in an itinerary.",
			instruction: "You fix overloaded travel schedules. Given a scheduling violation, propose which activities to move, merge, or drop so each day stays manageable. Plain text.",
		},
		{
			name:        repair.ToolLocationOptimizer,
			description: "Reduce infeasible amounts of travel between locations within a day.",
			instruction: "You fix geographically infeasible plans. Given a location violation, propose regrouping activities by neighborhood or dropping outliers so daily travel stays realistic. Plain text.",
		},
		{
			name:        repair.ToolWeatherAdapter,
			description: "Swap weather-exposed activities for sheltered alternatives.",
			instruction: "You adapt travel plans to weather risk. Given a weather violation, propose indoor or sheltered alternatives for the exposed activities, keeping them in the same area and price range. Plain text.",
		},
		{
			name:        repair.ToolPreferenceAligner,
			description: "Align an itinerary with stated traveler preferences.",
			instruction: "You align itineraries with traveler preferences. Given a preference violation, propose replacements that satisfy the stated preference (kid-friendly venues, museums, and similar). Plain text.",
		},
		{
			name:        repair.ToolDateAdjuster,
			description: "Fit an itinerary within the available date range.",
			instruction: "You fix date-range problems. Given a date violation, propose which days to compress or drop so the itinerary fits the available dates. Plain text.",
		},
		{
			name:        repair.ToolGenericFixer,
			description: "Resolve a violation no specialized adjuster covers.",
			instruction: "You fix problems in travel itineraries. Given the violation, propose the smallest concrete change that resolves it. Plain text.",
		},
	}

	tools := make([]Tool, len(defs))
	for i, d := range defs {
		tools[i] = &adjuster{
			name:        d.name,
			description: d.description,
			instruction: d.instruction,
			client:      client,
		}
	}
	return tools
}
