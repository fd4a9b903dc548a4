package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunRunning  = "running"
	RunComplete = "complete"
	RunFailed   = "failed"
)

// Run is one ingest invocation.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Chip       int
	DataDir    string
	Status     string
	Decoded    int
	Dropped    int
	Calibrated int
	Failures   int
}

// BeginRun records the start of run r. r.ID must be unique.
func (s *Store) BeginRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, chip, data_dir, status)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.StartedAt.UTC().Format(time.RFC3339Nano), r.Chip, r.DataDir, RunRunning)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun stores the final status and counters of run r.
func (s *Store) FinishRun(ctx context.Context, r Run) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, status = ?, decoded = ?, dropped = ?, calibrated = ?, failures = ?
		WHERE id = ?
	`, r.FinishedAt.UTC().Format(time.RFC3339Nano), r.Status,
		r.Decoded, r.Dropped, r.Calibrated, r.Failures, r.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", r.ID, sql.ErrNoRows)
	}
	return nil
}

// Runs returns the most recent runs, newest first. UUIDv7 ids sort by
// creation time.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, COALESCE(finished_at, ''), chip, data_dir, status,
		       decoded, dropped, calibrated, failures
		FROM runs
		ORDER BY id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Chip, &r.DataDir, &r.Status,
			&r.Decoded, &r.Dropped, &r.Calibrated, &r.Failures); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("list runs: started_at: %w", err)
		}
		if finished != "" {
			if r.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
				return nil, fmt.Errorf("list runs: finished_at: %w", err)
			}
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: iterate: %w", err)
	}
	return runs, nil
}
