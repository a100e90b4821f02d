package llm

import (
	"sync"
	"time"
)

// Capability is a semantic model-selection key. Callers ask for "planning"
// or "fast" rather than naming a concrete model; the registry resolves the
// capability to an ordered fallback chain of endpoints.
type Capability string

const (
	// CapabilityPlanning is for plan synthesis and constraint reasoning.
	CapabilityPlanning Capability = "planning"

	// CapabilityWriting is for itinerary narration and summaries.
	CapabilityWriting Capability = "writing"

	// CapabilityFast is for quick extraction and classification calls.
	CapabilityFast Capability = "fast"
)

// IsValid checks whether the capability is known.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityPlanning, CapabilityWriting, CapabilityFast:
		return true
	}
	return false
}

// Endpoint describes one model endpoint.
type Endpoint struct {
	// Provider selects the wire format ("openai", "anthropic").
	Provider string

	// URL is the API base URL. Empty uses the provider default.
	URL string

	// Model is the provider-side model name.
	Model string

	// MaxTokens caps response length. 0 uses the endpoint default.
	MaxTokens int
}

// unhealthyCooldown is how long a failed endpoint is skipped before being
// offered again in fallback chains.
const unhealthyCooldown = 2 * time.Minute

// Registry maps capabilities to endpoint fallback chains and tracks
// endpoint health. Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	chains    map[Capability][]Endpoint
	unhealthy map[string]time.Time // model name → time marked unhealthy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		chains:    make(map[Capability][]Endpoint),
		unhealthy: make(map[string]time.Time),
	}
}

// SetChain registers the fallback chain for a capability, replacing any
// existing chain.
func (r *Registry) SetChain(c Capability, endpoints []Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[c] = endpoints
}

// Chain returns the healthy endpoints for a capability, in fallback order.
// Endpoints inside their unhealthy cooldown are skipped; if every endpoint
// is cooling down, the full chain is returned so callers can still try.
func (r *Registry) Chain(c Capability) []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.chains[c]
	now := time.Now()
	healthy := make([]Endpoint, 0, len(all))
	for _, ep := range all {
		if marked, ok := r.unhealthy[ep.Model]; ok && now.Sub(marked) < unhealthyCooldown {
			continue
		}
		healthy = append(healthy, ep)
	}
	if len(healthy) == 0 {
		return all
	}
	return healthy
}

// MarkFailure records that an endpoint exhausted its retries.
func (r *Registry) MarkFailure(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unhealthy[model] = time.Now()
}

// MarkSuccess clears any unhealthy mark for an endpoint.
func (r *Registry) MarkSuccess(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.unhealthy, model)
}
