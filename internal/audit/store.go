// Package audit persists the terminal outcome of every task that leaves
// Pending into a SQLite log with one row per task, written from a
// pool.Pool's completion notifications.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ldi/taskpool/pkg/pool"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	task_id      TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	failure      TEXT,
	submitted_at INTEGER NOT NULL,
	finished_at  INTEGER NOT NULL,
	duration_ms  INTEGER NOT NULL
);
`

// Record is one persisted row: the terminal outcome of a task.
type Record struct {
	TaskID      string
	State       string
	Failure     string
	SubmittedAt int64 // unix millis
	FinishedAt  int64 // unix millis
	DurationMs  int64
}

// Store wraps a single-writer SQLite connection in WAL mode, the same
// shape as the teacher's general-purpose db.DB wrapper, narrowed to this
// package's one append-only table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a SQLite database at path, enables
// WAL mode, and applies the audit schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open database: %w", err)
	}

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: create database directory: %w", err)
		}
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: enable WAL mode: %w", err)
	}

	// SQLite works best with a single writer; WAL allows concurrent
	// readers, but this store only ever appends from one subscriber
	// goroutine, so a single connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("audit: migration failed: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one outcome row. Idempotent per task ID: a repeated write
// for the same task_id replaces the row rather than erroring. Record
// itself never retries a failed write (task IDs are UUIDv4 and never
// reused, so a repeat is never a logical re-submission).
func (s *Store) Record(ctx context.Context, r Record) error {
	const q = `
INSERT INTO audit_records (task_id, state, failure, submitted_at, finished_at, duration_ms)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(task_id) DO UPDATE SET
	state = excluded.state,
	failure = excluded.failure,
	submitted_at = excluded.submitted_at,
	finished_at = excluded.finished_at,
	duration_ms = excluded.duration_ms;
`
	var failure any
	if r.Failure != "" {
		failure = r.Failure
	}
	if _, err := s.db.ExecContext(ctx, q, r.TaskID, r.State, failure, r.SubmittedAt, r.FinishedAt, r.DurationMs); err != nil {
		return fmt.Errorf("audit: record %s: %w", r.TaskID, err)
	}
	return nil
}

// Count returns the number of rows currently persisted. Mainly for tests
// and the `stats` command.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records").Scan(&n); err != nil {
		return 0, fmt.Errorf("audit: count: %w", err)
	}
	return n, nil
}

// CountByState returns the number of persisted rows per terminal state,
// for the `stats` command's summary.
func (s *Store) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT state, COUNT(*) FROM audit_records GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("audit: count by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("audit: scan count by state: %w", err)
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

// Subscribe wires s to receive every outcome p publishes, converting
// pool.Outcome into a Record. Recording failures are passed to onErr
// rather than propagated. The write runs synchronously on the goroutine
// that publishes the outcome (the worker that ran the task, or the
// Submit/Close caller for a discarded one), so that goroutine waits for
// the write to finish; there is no separate writer goroutine.
func Subscribe(p *pool.Pool, s *Store, onErr func(error)) {
	p.Subscribe(func(o pool.Outcome) {
		r := Record{
			TaskID:      o.ID,
			State:       o.State.String(),
			Failure:     o.Failure,
			SubmittedAt: o.SubmittedAt.UnixMilli(),
			FinishedAt:  o.FinishedAt.UnixMilli(),
			DurationMs:  o.Duration.Milliseconds(),
		}
		if err := s.Record(context.Background(), r); err != nil && onErr != nil {
			onErr(err)
		}
	})
}
