// Package history persists build reports in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	sberrors "git.home.luguber.info/inful/sitebuilder/internal/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/executor"
)

// Store records one row per build invocation.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Entry is a persisted build summary.
type Entry struct {
	ID        int64         `json:"id"`
	BuildID   string        `json:"build_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Built     int           `json:"built"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Outcome   string        `json:"outcome"`
	Failures  []string      `json:"failures,omitempty"`
}

// Open creates or opens the build-history database.
// Use ":memory:" for an in-memory database, or a file path for persistent storage.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, sberrors.Wrap(err, sberrors.CategoryHistory, sberrors.SeverityError, "open history database")
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close() // Best effort cleanup on initialization error
		return nil, sberrors.Wrap(err, sberrors.CategoryHistory, sberrors.SeverityError, "initialize history schema")
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		build_id TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		built INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		failures TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_builds_build_id ON builds(build_id);
	CREATE INDEX IF NOT EXISTS idx_builds_started_at ON builds(started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record stores a finished build report.
func (s *Store) Record(ctx context.Context, report *executor.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var failures []string
	for _, f := range report.Failed {
		failures = append(failures, fmt.Sprintf("%s: %v", f.Path, f.Cause))
	}
	var failuresJSON []byte
	if failures != nil {
		var err error
		failuresJSON, err = json.Marshal(failures)
		if err != nil {
			return fmt.Errorf("marshal failures: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO builds (build_id, started_at, duration_ms, built, skipped, failed, outcome, failures) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		report.BuildID,
		report.StartedAt.Unix(),
		report.Duration.Milliseconds(),
		len(report.Built),
		len(report.Skipped),
		len(report.Failed),
		string(report.Outcome),
		failuresJSON,
	)
	if err != nil {
		return sberrors.Wrap(err, sberrors.CategoryHistory, sberrors.SeverityError, "insert build record")
	}
	return nil
}

// Recent returns the most recent builds, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, build_id, started_at, duration_ms, built, skipped, failed, outcome, failures FROM builds ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, sberrors.Wrap(err, sberrors.CategoryHistory, sberrors.SeverityError, "query build history")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e          Entry
			startedAt  int64
			durationMS int64
			failures   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.BuildID, &startedAt, &durationMS, &e.Built, &e.Skipped, &e.Failed, &e.Outcome, &failures); err != nil {
			return nil, fmt.Errorf("scan build row: %w", err)
		}
		e.StartedAt = time.Unix(startedAt, 0)
		e.Duration = time.Duration(durationMS) * time.Millisecond
		if failures.Valid && failures.String != "" {
			if err := json.Unmarshal([]byte(failures.String), &e.Failures); err != nil {
				return nil, fmt.Errorf("decode failures: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
