package tools

import (
	"context"
	"fmt"

	"github.com/wayfarerhq/wayfarer/llm"
	"github.com/wayfarerhq/wayfarer/trip"
)

// completer is the subset of the llm client the LLM-backed tools need.
type completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

const travelAgentPrompt = `You are an experienced travel agent. Answer the question below concisely and factually. When the question involves trade-offs, state your recommendation and why. Plain text only.`

// TravelAgent is a free-form reasoning tool for questions no structured
// tool covers: visa rules, local customs, trade-off judgments.
type TravelAgent struct {
	client completer
}

// NewTravelAgent creates the ask_travel_agent tool.
func NewTravelAgent(client completer) *TravelAgent {
	return &TravelAgent{client: client}
}

func (a *TravelAgent) Spec() trip.ToolSpec {
	return trip.ToolSpec{
		Name:        "ask_travel_agent",
		Description: "Ask an expert travel agent a free-form question (visas, customs, trade-offs).",
		Args: map[string]string{
			"question": "string, the question to ask",
		},
	}
}

func (a *TravelAgent) Execute(ctx context.Context, args map[string]any) (string, error) {
	question, err := stringArg(args, "question")
	if err != nil {
		return "", err
	}

	resp, err := a.client.Complete(ctx, llm.Request{
		Capability: llm.CapabilityFast,
		Messages: []llm.Message{
			{Role: "system", Content: travelAgentPrompt},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		return "", fmt.Errorf("travel agent: %w", err)
	}
	return resp.Content, nil
}
