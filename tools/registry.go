// Package tools provides the tool registry, the rate-limited invoker used
// by the scheduler, and the reference tool implementations: weather,
// flights, hotels, knowledge-base search, decision agent, and the repair
// adjusters.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/wayfarerhq/wayfarer/trip"
)

// Tool is one invocable capability.
type Tool interface {
	// Spec describes the tool for the planning prompt.
	Spec() trip.ToolSpec

	// Execute runs the tool. The result is an opaque string handed to the
	// synthesis stage.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds registered tools and enforces an optional allowlist of
// glob patterns. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	tools     map[string]Tool
	allowlist []string // doublestar patterns; empty allows all
}

// NewRegistry creates an empty registry. Patterns, when non-empty, restrict
// which tool names may be registered or invoked (e.g. "search_*").
func NewRegistry(allowlist []string) *Registry {
	return &Registry{
		tools:     make(map[string]Tool),
		allowlist: allowlist,
	}
}

// Allowed reports whether a tool name passes the allowlist.
func (r *Registry) Allowed(name string) bool {
	if len(r.allowlist) == 0 {
		return true
	}
	for _, pattern := range r.allowlist {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Register adds a tool. Tools excluded by the allowlist are skipped with
// no error so deployments can disable tools purely via config.
func (r *Registry) Register(t Tool) {
	name := t.Spec().Name
	if !r.Allowed(name) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return t, nil
}

// Catalog returns the specs of every registered tool, sorted by name for
// stable prompt rendering.
func (r *Registry) Catalog() []trip.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]trip.ToolSpec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, t.Spec())
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}
