package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarerhq/wayfarer/llm"
	"github.com/wayfarerhq/wayfarer/repair"
)

// stubCompleter records the last request and returns a canned answer.
type stubCompleter struct {
	last    llm.Request
	content string
	err     error
}

func (s *stubCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	s.last = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Content: s.content}, nil
}

func TestTravelAgent(t *testing.T) {
	c := &stubCompleter{content: "Yes, US citizens get 90 visa-free days in Portugal."}
	tool := NewTravelAgent(c)

	out, err := tool.Execute(context.Background(), map[string]any{
		"question": "Do US citizens need a visa for Portugal?",
	})

	require.NoError(t, err)
	assert.Contains(t, out, "visa-free")
	assert.Equal(t, llm.CapabilityFast, c.last.Capability)
	require.Len(t, c.last.Messages, 2)
	assert.Equal(t, "Do US citizens need a visa for Portugal?", c.last.Messages[1].Content)
}

func TestTravelAgentErrors(t *testing.T) {
	tool := NewTravelAgent(&stubCompleter{err: errors.New("model down")})

	_, err := tool.Execute(context.Background(), map[string]any{"question": "hi"})
	assert.ErrorContains(t, err, "travel agent")

	_, err = tool.Execute(context.Background(), map[string]any{})
	assert.ErrorContains(t, err, "question")
}

func TestRepairToolsCoverEveryAdjuster(t *testing.T) {
	tools := NewRepairTools(&stubCompleter{content: "swap the hotel"})

	want := []string{
		repair.ToolBudgetOptimizer,
		repair.ToolScheduleOptimizer,
		repair.ToolLocationOptimizer,
		repair.ToolWeatherAdapter,
		repair.ToolPreferenceAligner,
		repair.ToolDateAdjuster,
		repair.ToolGenericFixer,
	}
	require.Len(t, tools, len(want))
	for i, name := range want {
		assert.Equal(t, name, tools[i].Spec().Name)
	}
}

func TestRepairToolPassesViolation(t *testing.T) {
	c := &stubCompleter{content: "drop the second museum"}
	tools := NewRepairTools(c)

	out, err := tools[0].Execute(context.Background(), map[string]any{
		"violation": "Total cost $1800.00 exceeds budget of $1500.00",
	})

	require.NoError(t, err)
	assert.Equal(t, "drop the second museum", out)
	assert.Contains(t, c.last.Messages[1].Content, "Violation: Total cost")

	_, err = tools[0].Execute(context.Background(), map[string]any{})
	assert.Error(t, err)
}
