package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapabilityIsValid(t *testing.T) {
	assert.True(t, CapabilityPlanning.IsValid())
	assert.True(t, CapabilityWriting.IsValid())
	assert.True(t, CapabilityFast.IsValid())
	assert.False(t, Capability("coding").IsValid())
	assert.False(t, Capability("").IsValid())
}

func TestRegistryChainOrder(t *testing.T) {
	r := NewRegistry()
	primary := Endpoint{Provider: "openai", Model: "primary"}
	fallback := Endpoint{Provider: "openai", Model: "fallback"}
	r.SetChain(CapabilityPlanning, []Endpoint{primary, fallback})

	chain := r.Chain(CapabilityPlanning)
	require.Len(t, chain, 2)
	assert.Equal(t, "primary", chain[0].Model)
	assert.Equal(t, "fallback", chain[1].Model)
}

func TestRegistryUnhealthySkipped(t *testing.T) {
	r := NewRegistry()
	r.SetChain(CapabilityFast, []Endpoint{
		{Provider: "openai", Model: "a"},
		{Provider: "openai", Model: "b"},
	})

	r.MarkFailure("a")

	chain := r.Chain(CapabilityFast)
	require.Len(t, chain, 1)
	assert.Equal(t, "b", chain[0].Model)

	// Recovery clears the mark.
	r.MarkSuccess("a")
	assert.Len(t, r.Chain(CapabilityFast), 2)
}

func TestRegistryAllUnhealthyReturnsFullChain(t *testing.T) {
	r := NewRegistry()
	r.SetChain(CapabilityFast, []Endpoint{
		{Provider: "openai", Model: "a"},
		{Provider: "openai", Model: "b"},
	})

	r.MarkFailure("a")
	r.MarkFailure("b")

	// Everything cooling down: callers still get the full chain to try.
	assert.Len(t, r.Chain(CapabilityFast), 2)
}

func TestRegistryUnknownCapability(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Chain(CapabilityWriting))
}
