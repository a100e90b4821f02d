package scheduler

import "fmt"

// InvalidPlanError reports a malformed task graph: duplicate ids, unresolved
// dependencies, or cycles. It is fatal for the current planning round; a
// broken graph is never scheduled.
type InvalidPlanError struct {
	Reason string
}

func (e *InvalidPlanError) Error() string {
	return fmt.Sprintf("invalid plan: %s", e.Reason)
}

// ErrStuckGraph is returned by a round when the graph is non-empty but no
// step is ready. It is non-fatal: the caller logs it and proceeds to
// synthesis with whatever partial results exist.
type ErrStuckGraph struct {
	Remaining int
}

func (e *ErrStuckGraph) Error() string {
	return fmt.Sprintf("stuck graph: %d steps remain but none are ready", e.Remaining)
}
