package trip

import "time"

// RunStatus is the lifecycle state of a planning run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// Run is the durable record of one planning session. It is created when a
// request arrives and mutated only by the orchestration engine; once the
// status is terminal it never changes again.
type Run struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Owner     string     `json:"owner,omitempty"`
	Status    RunStatus  `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// PlanSnapshot is the final itinerary, possibly partial on failure.
	PlanSnapshot *Itinerary `json:"plan_snapshot,omitempty"`

	// ToolLog is the ordered record of every tool call attempted.
	ToolLog []ToolCall `json:"tool_log,omitempty"`

	// FailureReason carries a short natural-language explanation when the
	// run ends failed. Never a stack trace.
	FailureReason string `json:"failure_reason,omitempty"`
}

// ToolUsage aggregates tool call activity for a response payload.
type ToolUsage struct {
	Tool        string  `json:"tool"`
	Invocations int     `json:"invocations"`
	DurationMS  float64 `json:"duration_ms"`
}

// AggregateToolUsage folds a tool call log into per-tool totals, ordered by
// first appearance in the log.
func AggregateToolUsage(calls []ToolCall) []ToolUsage {
	index := make(map[string]int)
	var usage []ToolUsage
	for _, tc := range calls {
		i, ok := index[tc.Tool]
		if !ok {
			i = len(usage)
			index[tc.Tool] = i
			usage = append(usage, ToolUsage{Tool: tc.Tool})
		}
		usage[i].Invocations++
		if tc.DurationMS != nil {
			usage[i].DurationMS += *tc.DurationMS
		}
	}
	return usage
}
