// Package repair maps verification violations to remediation plan steps.
// Each violation produces exactly one repair step; classification is
// keyword-based with a fixed first-match priority order.
package repair

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/wayfarerhq/wayfarer/trip"
)

// Repair tool names, one per violation category.
const (
	ToolBudgetOptimizer   = "budget_optimizer"
	ToolScheduleOptimizer = "schedule_optimizer"
	ToolLocationOptimizer = "location_optimizer"
	ToolWeatherAdapter    = "weather_adapter"
	ToolPreferenceAligner = "preference_aligner"
	ToolDateAdjuster      = "date_adjuster"
	ToolGenericFixer      = "generic_fixer"
)

// Generate produces one repair step per violation. Repair steps carry no
// dependencies: they merge back into the scheduler as a fresh ready layer.
// Each step gets a fresh id so the id-keyed completion tracking never
// mistakes a new step for an already executed one.
func Generate(violations []trip.Violation) []trip.PlanStep {
	steps := make([]trip.PlanStep, 0, len(violations))
	for _, v := range violations {
		tool := classify(v)
		steps = append(steps, trip.PlanStep{
			ID:        fmt.Sprintf("repair_%s_%s", tool, uuid.NewString()[:8]),
			DependsOn: []string{},
			Tool:      tool,
			Args: map[string]any{
				"violation": string(v),
			},
		})
	}
	return steps
}

// classify picks the repair tool for a violation string. The priority order
// is deliberate: overlapping keywords across categories resolve to the
// first match, even where the text is ambiguous.
func classify(v trip.Violation) string {
	text := strings.ToLower(string(v))

	switch {
	case strings.Contains(text, "budget") || strings.Contains(text, "cost"):
		return ToolBudgetOptimizer
	case strings.Contains(text, "day") &&
		(strings.Contains(text, "conflict") || strings.Contains(text, "activities")):
		return ToolScheduleOptimizer
	case strings.Contains(text, "location") || strings.Contains(text, "feasible"):
		return ToolLocationOptimizer
	case strings.Contains(text, "weather") || strings.Contains(text, "outdoor"):
		return ToolWeatherAdapter
	case strings.Contains(text, "kid-friendly") || strings.Contains(text, "museum") ||
		strings.Contains(text, "preference"):
		return ToolPreferenceAligner
	case strings.Contains(text, "date") &&
		(strings.Contains(text, "exceed") || strings.Contains(text, "available")):
		return ToolDateAdjuster
	default:
		return ToolGenericFixer
	}
}
