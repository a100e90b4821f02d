// Package events publishes run lifecycle events to NATS. Publishing is
// strictly best-effort: a nil or disconnected connection degrades to a
// debug log, never an error, so the orchestrator works without a broker.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event is one run lifecycle notification.
type Event struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher emits run events on the subject wayfarer.run.<id>.events.
type Publisher struct {
	nc     *nats.Conn
	logger *slog.Logger
}

// NewPublisher creates a publisher. nc may be nil to disable publishing.
func NewPublisher(nc *nats.Conn, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{nc: nc, logger: logger}
}

// Publish emits one event. Failures are logged and swallowed.
func (p *Publisher) Publish(runID, stage, detail string) {
	if p == nil || p.nc == nil {
		slog.Debug("Event publishing disabled, skipping", "run_id", runID, "stage", stage)
		return
	}

	event := Event{
		RunID:     runID,
		Stage:     stage,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("Failed to encode run event", "run_id", runID, "stage", stage, "error", err)
		return
	}

	subject := "wayfarer.run." + runID + ".events"
	if err := p.nc.Publish(subject, data); err != nil {
		p.logger.Warn("Failed to publish run event", "subject", subject, "error", err)
		return
	}
	p.logger.Debug("Published run event", "subject", subject, "stage", stage)
}
