// Package store persists plans and runs. Two backends exist: an in-memory
// store for tests and single-process deployments, and a SQLite store for
// durability across restarts.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/wayfarerhq/wayfarer/trip"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// PlanRecord is the durable state of one plan, keyed by plan id. Edits load
// this record, merge new constraints over its constraints, and revise its
// itinerary.
type PlanRecord struct {
	ID             string           `json:"id"`
	Query          string           `json:"query"`
	Constraints    trip.Constraints `json:"constraints"`
	Itinerary      *trip.Itinerary  `json:"itinerary,omitempty"`
	Citations      []trip.Citation  `json:"citations,omitempty"`
	Decisions      []string         `json:"decisions,omitempty"`
	AnswerMarkdown string           `json:"answer_markdown,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// PlanStore persists plan records.
type PlanStore interface {
	// SavePlan inserts or replaces a plan record.
	SavePlan(ctx context.Context, record *PlanRecord) error

	// GetPlan fetches a plan record by id. Returns ErrNotFound when absent.
	GetPlan(ctx context.Context, id string) (*PlanRecord, error)
}

// RunStore persists run records.
type RunStore interface {
	// SaveRun inserts or replaces a run record.
	SaveRun(ctx context.Context, run *trip.Run) error

	// GetRun fetches a run by id. Returns ErrNotFound when absent.
	GetRun(ctx context.Context, id string) (*trip.Run, error)
}

// Store is the combined persistence surface the engine and API need.
type Store interface {
	PlanStore
	RunStore
}
