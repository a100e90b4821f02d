package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Observer receives the outcome of each tool invocation. Implemented by the
// metrics package; a nil observer disables observation.
type Observer interface {
	ObserveToolInvocation(tool string, duration time.Duration, failed bool)
}

// Invoker dispatches tool invocations against a registry with rate limiting.
// It satisfies the scheduler's ToolInvoker contract.
type Invoker struct {
	registry *Registry
	limiter  *rate.Limiter
	observer Observer
	logger   *slog.Logger
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithRateLimit caps tool invocations at perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) InvokerOption {
	return func(inv *Invoker) {
		inv.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithObserver sets the invocation observer.
func WithObserver(o Observer) InvokerOption {
	return func(inv *Invoker) { inv.observer = o }
}

// WithInvokerLogger sets the logger.
func WithInvokerLogger(logger *slog.Logger) InvokerOption {
	return func(inv *Invoker) { inv.logger = logger }
}

// NewInvoker creates an invoker over the registry. Without WithRateLimit the
// invoker does not throttle.
func NewInvoker(registry *Registry, opts ...InvokerOption) *Invoker {
	inv := &Invoker{
		registry: registry,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invoke looks up and executes a tool. Rate limiting happens before lookup
// so unknown-tool storms are throttled too.
func (inv *Invoker) Invoke(ctx context.Context, tool string, args map[string]any) (string, error) {
	if inv.limiter != nil {
		if err := inv.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	t, err := inv.registry.Get(tool)
	if err != nil {
		inv.observe(tool, 0, true)
		return "", err
	}

	start := time.Now()
	result, err := t.Execute(ctx, args)
	elapsed := time.Since(start)
	inv.observe(tool, elapsed, err != nil)

	if err != nil {
		inv.logger.Warn("Tool invocation failed", "tool", tool, "duration", elapsed, "error", err)
		return "", err
	}
	inv.logger.Debug("Tool invocation complete", "tool", tool, "duration", elapsed)
	return result, nil
}

func (inv *Invoker) observe(tool string, d time.Duration, failed bool) {
	if inv.observer != nil {
		inv.observer.ObserveToolInvocation(tool, d, failed)
	}
}
