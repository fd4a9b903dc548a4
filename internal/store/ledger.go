package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/npuprof/internal/ledger"
)

// LoadLedger returns the persisted entry for stream, or nil if the stream has
// never been processed.
func (s *Store) LoadLedger(ctx context.Context, stream string) (*ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file, byte_offset, size, complete
		FROM ledger_entries
		WHERE stream = ?
		ORDER BY file COLLATE BINARY ASC
	`, stream)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", stream, err)
	}
	defer rows.Close()

	var e *ledger.Entry
	for rows.Next() {
		var (
			file string
			st   ledger.FileState
		)
		if err := rows.Scan(&file, &st.Offset, &st.Size, &st.Complete); err != nil {
			return nil, fmt.Errorf("load ledger %s: scan: %w", stream, err)
		}
		if e == nil {
			e = ledger.NewEntry(stream)
		}
		e.Files[file] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load ledger %s: iterate: %w", stream, err)
	}
	return e, nil
}

// SaveLedger persists e on its own, outside any pass.
func (s *Store) SaveLedger(ctx context.Context, e *ledger.Entry) error {
	return s.withTx(ctx, "save ledger", func(tx *sql.Tx) error {
		return saveEntry(ctx, tx, "", e)
	})
}

// Ledgers returns every persisted entry ordered by stream key.
func (s *Store) Ledgers(ctx context.Context) ([]*ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stream, file, byte_offset, size, complete
		FROM ledger_entries
		ORDER BY stream COLLATE BINARY ASC, file COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list ledgers: %w", err)
	}
	defer rows.Close()

	entries := []*ledger.Entry{}
	var cur *ledger.Entry
	for rows.Next() {
		var (
			stream, file string
			st           ledger.FileState
		)
		if err := rows.Scan(&stream, &file, &st.Offset, &st.Size, &st.Complete); err != nil {
			return nil, fmt.Errorf("list ledgers: scan: %w", err)
		}
		if cur == nil || cur.Stream != stream {
			cur = ledger.NewEntry(stream)
			entries = append(entries, cur)
		}
		cur.Files[file] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ledgers: iterate: %w", err)
	}
	return entries, nil
}

func saveEntry(ctx context.Context, tx *sql.Tx, runID string, e *ledger.Entry) error {
	var run any
	if runID != "" {
		run = runID
	}
	for file, st := range e.Files {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO ledger_entries (stream, file, byte_offset, size, complete, run_id)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(stream, file) DO UPDATE SET
				byte_offset = excluded.byte_offset,
				size = excluded.size,
				complete = excluded.complete,
				run_id = excluded.run_id
		`, e.Stream, file, st.Offset, st.Size, st.Complete, run)
		if err != nil {
			return fmt.Errorf("save ledger %s/%s: %w", e.Stream, file, err)
		}
	}
	return nil
}
