package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wayfarerhq/wayfarer/trip"
)

// SQLiteStore persists plans and runs in a SQLite database. Records are
// stored as JSON documents keyed by id; the orchestrator never queries
// inside them, so a relational schema would buy nothing.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS plans (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SavePlan(ctx context.Context, record *PlanRecord) error {
	return s.upsert(ctx, "plans", record.ID, record)
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*PlanRecord, error) {
	record := new(PlanRecord)
	if err := s.fetch(ctx, "plans", id, record); err != nil {
		return nil, fmt.Errorf("plan %s: %w", id, err)
	}
	return record, nil
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *trip.Run) error {
	return s.upsert(ctx, "runs", run.ID, run)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*trip.Run, error) {
	run := new(trip.Run)
	if err := s.fetch(ctx, "runs", id, run); err != nil {
		return nil, fmt.Errorf("run %s: %w", id, err)
	}
	return run, nil
}

func (s *SQLiteStore) upsert(ctx context.Context, table, id string, record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", table, id, err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`, table)
	if _, err := s.db.ExecContext(ctx, query, id, string(data), time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("upsert %s %s: %w", table, id, err)
	}
	return nil
}

func (s *SQLiteStore) fetch(ctx context.Context, table, id string, out any) error {
	query := fmt.Sprintf("SELECT data FROM %s WHERE id = ?", table)
	var data string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
