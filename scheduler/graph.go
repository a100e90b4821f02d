// Package scheduler validates task graphs and drains them in dependency
// order, dispatching all ready steps concurrently each round.
package scheduler

import (
	"fmt"

	"github.com/wayfarerhq/wayfarer/trip"
)

// Graph holds the remaining steps of one planning round. It is owned by a
// single run; methods are not safe for concurrent use.
type Graph struct {
	steps map[string]trip.PlanStep
	order []string // insertion order, kept for stable iteration
}

// NewGraph validates a freshly produced set of plan steps and wraps them.
// Validation enforces globally unique ids, resolvable dependencies, and
// acyclicity; any violation returns an *InvalidPlanError.
func NewGraph(steps []trip.PlanStep) (*Graph, error) {
	g := &Graph{steps: make(map[string]trip.PlanStep, len(steps))}

	for _, s := range steps {
		if s.ID == "" {
			return nil, &InvalidPlanError{Reason: "step with empty id"}
		}
		if _, dup := g.steps[s.ID]; dup {
			return nil, &InvalidPlanError{Reason: fmt.Sprintf("duplicate step id %q", s.ID)}
		}
		g.steps[s.ID] = s
		g.order = append(g.order, s.ID)
	}

	for _, s := range steps {
		for _, dep := range s.DependsOn {
			if dep == s.ID {
				return nil, &InvalidPlanError{Reason: fmt.Sprintf("step %q depends on itself", s.ID)}
			}
			if _, ok := g.steps[dep]; !ok {
				return nil, &InvalidPlanError{Reason: fmt.Sprintf("step %q depends on unknown step %q", s.ID, dep)}
			}
		}
	}

	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}

	return g, nil
}

// checkAcyclic runs Kahn's algorithm over the full step set. If the
// topological ordering cannot consume every step, a cycle exists.
func (g *Graph) checkAcyclic() error {
	inDegree := make(map[string]int, len(g.steps))
	dependents := make(map[string][]string, len(g.steps))

	for id := range g.steps {
		inDegree[id] = 0
	}
	for id, s := range g.steps {
		for _, dep := range s.DependsOn {
			inDegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, next := range dependents[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if processed != len(g.steps) {
		return &InvalidPlanError{
			Reason: fmt.Sprintf("circular dependency: %d steps could not be ordered", len(g.steps)-processed),
		}
	}
	return nil
}

// Ready returns the steps whose dependencies are all in completed, in
// insertion order. Completion is id-keyed: a step that finished in error
// still unblocks its dependents.
func (g *Graph) Ready(completed map[string]bool) []trip.PlanStep {
	var ready []trip.PlanStep
	for _, id := range g.order {
		s, ok := g.steps[id]
		if !ok {
			continue
		}
		unmet := false
		for _, dep := range s.DependsOn {
			if !completed[dep] {
				unmet = true
				break
			}
		}
		if !unmet {
			ready = append(ready, s)
		}
	}
	return ready
}

// Remove drops the given step ids from the graph.
func (g *Graph) Remove(ids []string) {
	for _, id := range ids {
		delete(g.steps, id)
	}
}

// Clear empties the graph. Used when a stuck round abandons the remainder.
func (g *Graph) Clear() {
	g.steps = make(map[string]trip.PlanStep)
	g.order = nil
}

// Add appends repair steps as a fresh layer. The new steps must not collide
// with ids still present in the graph.
func (g *Graph) Add(steps []trip.PlanStep) error {
	for _, s := range steps {
		if s.ID == "" {
			return &InvalidPlanError{Reason: "step with empty id"}
		}
		if _, dup := g.steps[s.ID]; dup {
			return &InvalidPlanError{Reason: fmt.Sprintf("duplicate step id %q", s.ID)}
		}
		g.steps[s.ID] = s
		g.order = append(g.order, s.ID)
	}
	return nil
}

// Len returns the number of steps still waiting to execute.
func (g *Graph) Len() int {
	return len(g.steps)
}

// Steps returns the remaining steps in insertion order.
func (g *Graph) Steps() []trip.PlanStep {
	out := make([]trip.PlanStep, 0, len(g.steps))
	for _, id := range g.order {
		if s, ok := g.steps[id]; ok {
			out = append(out, s)
		}
	}
	return out
}
