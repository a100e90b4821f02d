package trip

import (
	"encoding/json"
	"time"
)

// PlanStep is one node of the task graph: a single tool invocation to
// perform. Steps are immutable once produced by the reasoner; a later
// planning round replaces a step with a fresh id, it never mutates one.
type PlanStep struct {
	// ID is unique within one graph instance.
	ID string `json:"id"`

	// DependsOn lists the ids of steps that must complete first.
	DependsOn []string `json:"depends_on"`

	// Tool names the tool to invoke.
	Tool string `json:"tool"`

	// Args is the opaque argument bag passed to the tool.
	Args map[string]any `json:"args,omitempty"`
}

// ToolCall records one attempt at executing a PlanStep. Exactly one of
// Result or Error is set. A step counts as completed for dependency
// resolution once CompletedAt is non-nil, regardless of error.
type ToolCall struct {
	ID          string         `json:"id"`
	Tool        string         `json:"tool"`
	Args        map[string]any `json:"args,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	DurationMS  *float64       `json:"duration_ms,omitempty"`
	Result      string         `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Completed reports whether this call finished, in error or not.
func (tc ToolCall) Completed() bool {
	return tc.CompletedAt != nil
}

// ArgsJSON renders the step arguments as compact JSON for prompts and logs.
func (s PlanStep) ArgsJSON() string {
	if len(s.Args) == 0 {
		return "{}"
	}
	data, err := json.Marshal(s.Args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
