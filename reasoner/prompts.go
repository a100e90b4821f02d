package reasoner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wayfarerhq/wayfarer/trip"
)

const constraintsSystemPrompt = `You are a travel planning constraint extraction assistant. Analyze the user's travel request and extract specific constraints:
- budget_usd: total budget in USD (number, null if not mentioned)
- start_date / end_date: travel dates in YYYY-MM-DD format (empty if not mentioned)
- airports: departure airport codes (empty list if not mentioned)
- preferences: family_friendly, luxury, budget_friendly, adventure, cultural, relaxation, kid_friendly, museums (true/false, or null when not expressed)

Only extract information that is explicitly mentioned or strongly implied.
Respond with a single JSON object and nothing else:
{"budget_usd": null, "start_date": "", "end_date": "", "airports": [], "preferences": {}}`

const planSystemPrompt = `You are a travel planning assistant. For the given request, create a step-by-step plan using the available tools.

Your plan should:
1. Break down the request into logical steps
2. Use appropriate tools to gather information
3. Create dependencies between steps only when one step needs another's output
4. Assume a final synthesis and validation pass runs after all steps; do not include them

Each step must have:
- id: unique identifier (e.g. "check_weather")
- depends_on: list of step ids this step depends on ([] if none)
- tool: exact name of an available tool
- args: object with arguments for the tool

Respond with a JSON array of steps and nothing else.`

const synthesizeSystemPrompt = `You are a travel planning assistant. Fuse the tool results below into a day-by-day itinerary that satisfies the user's constraints.

Respond with a single JSON object and nothing else:
{
  "itinerary": {"days": [{"date": "YYYY-MM-DD", "activities": [{"name": "", "description": "", "duration_minutes": 60, "cost_usd": 0, "location": ""}], "total_cost_usd": 0}], "total_cost_usd": 0},
  "citations": [{"title": "", "source": "", "ref": ""}],
  "decisions": ["why each notable choice was made"]
}`

const narrateSystemPrompt = `Summarize the itinerary, citations, and decisions into a markdown write-up for the traveler. Only return the markdown.`

// renderToolCatalog formats tool specs for the planning prompt.
func renderToolCatalog(catalog []trip.ToolSpec) string {
	var b strings.Builder
	for _, spec := range catalog {
		fmt.Fprintf(&b, "- %s: %s\n", spec.Name, spec.Description)
		if len(spec.Args) > 0 {
			names := make([]string, 0, len(spec.Args))
			for name := range spec.Args {
				names = append(names, name)
			}
			sort.Strings(names)
			pairs := make([]string, len(names))
			for i, name := range names {
				pairs[i] = fmt.Sprintf("%s: %s", name, spec.Args[name])
			}
			fmt.Fprintf(&b, "  Arguments: %s\n", strings.Join(pairs, ", "))
		}
	}
	return b.String()
}

// renderToolResults formats completed tool calls for the synthesis prompt.
// Failed calls are included with their error so the model can work around
// missing data.
func renderToolResults(calls []trip.ToolCall) string {
	var b strings.Builder
	for _, tc := range calls {
		if tc.Error != "" {
			fmt.Fprintf(&b, "[%s via %s] FAILED: %s\n", tc.ID, tc.Tool, tc.Error)
			continue
		}
		fmt.Fprintf(&b, "[%s via %s] %s\n", tc.ID, tc.Tool, tc.Result)
	}
	return b.String()
}
