package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/npuprof/internal/catalog"
	"github.com/roach88/npuprof/internal/ledger"
)

// Rows is one decoded record group headed for kind's table.
type Rows struct {
	Kind    catalog.Kind
	Device  int
	Records []catalog.Record
	// Batches holds the batch id of each record. Required for task kinds,
	// ignored otherwise.
	Batches []int64
}

// Pass is everything one ingest pass persists.
type Pass struct {
	RunID   string
	Rows    []Rows
	Entries []*ledger.Entry
}

// CommitPass writes the records and ledger entries of a pass in a single
// transaction. Either all of them become visible or none do.
func (s *Store) CommitPass(ctx context.Context, p Pass) error {
	if p.RunID == "" {
		return fmt.Errorf("commit pass: empty run id")
	}
	return s.withTx(ctx, "commit pass", func(tx *sql.Tx) error {
		for _, r := range p.Rows {
			if err := insertRows(ctx, tx, p.RunID, r); err != nil {
				return err
			}
		}
		for _, e := range p.Entries {
			if err := saveEntry(ctx, tx, p.RunID, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertRows(ctx context.Context, tx *sql.Tx, runID string, r Rows) error {
	if len(r.Records) == 0 {
		return nil
	}
	task := r.Kind.IsTask()
	if task && len(r.Batches) != len(r.Records) {
		return fmt.Errorf("insert %s: %d records, %d batch ids", r.Kind, len(r.Records), len(r.Batches))
	}

	query, err := insertSQL(r.Kind)
	if err != nil {
		return fmt.Errorf("insert %s: %w", r.Kind, err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("insert %s: prepare: %w", r.Kind, err)
	}
	defer stmt.Close()

	for i, rec := range r.Records {
		if rec.Kind() != r.Kind {
			return fmt.Errorf("insert %s: record %d is %s", r.Kind, i, rec.Kind())
		}
		args := make([]any, 0, 3+len(rec.Values()))
		args = append(args, runID, r.Device)
		args = append(args, rec.Values()...)
		if task {
			args = append(args, r.Batches[i])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s: record %d: %w", r.Kind, i, err)
		}
	}
	return nil
}

// LoadFlips returns every persisted flip of device in timestamp order.
func (s *Store) LoadFlips(ctx context.Context, device int) ([]catalog.TaskFlip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stream_id, flip_num, task_id, timestamp
		FROM task_flip
		WHERE device = ?
		ORDER BY stream_id ASC, timestamp ASC, rowid ASC
	`, device)
	if err != nil {
		return nil, fmt.Errorf("load flips: %w", err)
	}
	defer rows.Close()

	flips := []catalog.TaskFlip{}
	for rows.Next() {
		var stream, num, task, ts int64
		if err := rows.Scan(&stream, &num, &task, &ts); err != nil {
			return nil, fmt.Errorf("load flips: scan: %w", err)
		}
		flips = append(flips, catalog.TaskFlip{
			StreamID:  uint16(stream),
			FlipNum:   uint16(num),
			TaskID:    uint16(task),
			Timestamp: uint64(ts),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load flips: iterate: %w", err)
	}
	return flips, nil
}

// CountRecords returns the number of persisted records of kind.
func (s *Store) CountRecords(ctx context.Context, kind catalog.Kind) (int, error) {
	if _, err := schemaCatalog.Format(kind); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quote(kind.String())).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", kind, err)
	}
	return n, nil
}

// BatchIDs returns the batch ids persisted for kind, in insertion order.
func (s *Store) BatchIDs(ctx context.Context, kind catalog.Kind) ([]int64, error) {
	if !kind.IsTask() {
		return nil, fmt.Errorf("batch ids: %s is not a task kind", kind)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT batch_id FROM "+quote(kind.String())+" ORDER BY rowid ASC")
	if err != nil {
		return nil, fmt.Errorf("batch ids %s: %w", kind, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("batch ids %s: scan: %w", kind, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
