package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/wayfarerhq/wayfarer/trip"
)

// MemoryStore keeps plans and runs in process memory. Records are deep
// copied through JSON on both save and get so callers can never mutate
// stored state through a shared pointer.
type MemoryStore struct {
	mu    sync.RWMutex
	plans map[string]*PlanRecord
	runs  map[string]*trip.Run
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans: make(map[string]*PlanRecord),
		runs:  make(map[string]*trip.Run),
	}
}

func (m *MemoryStore) SavePlan(ctx context.Context, record *PlanRecord) error {
	clone := new(PlanRecord)
	if err := deepCopy(record, clone); err != nil {
		return fmt.Errorf("save plan %s: %w", record.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[record.ID] = clone
	return nil
}

func (m *MemoryStore) GetPlan(ctx context.Context, id string) (*PlanRecord, error) {
	m.mu.RLock()
	record, ok := m.plans[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("plan %s: %w", id, ErrNotFound)
	}
	clone := new(PlanRecord)
	if err := deepCopy(record, clone); err != nil {
		return nil, fmt.Errorf("get plan %s: %w", id, err)
	}
	return clone, nil
}

func (m *MemoryStore) SaveRun(ctx context.Context, run *trip.Run) error {
	clone := new(trip.Run)
	if err := deepCopy(run, clone); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = clone
	return nil
}

func (m *MemoryStore) GetRun(ctx context.Context, id string) (*trip.Run, error) {
	m.mu.RLock()
	run, ok := m.runs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	clone := new(trip.Run)
	if err := deepCopy(run, clone); err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	return clone, nil
}

func deepCopy(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
