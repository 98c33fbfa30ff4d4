// Package store provides a SQLite-backed history of query runs and
// evaluation verdicts. Every `docrag query`, `docrag eval` case and API call
// appends one row so operators can review what was asked, what came back and
// which documents were cited.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Kind identifies the type of a recorded run.
type Kind string

const (
	// KindQuery is a single question answered by the query pipeline.
	KindQuery Kind = "query"
	// KindEval is a question graded by the evaluation judge.
	KindEval Kind = "eval"
)

// Run is a single recorded pipeline invocation.
type Run struct {
	// ID is a random UUID assigned on insert.
	ID string
	// Kind is query or eval.
	Kind Kind
	// Question is the user's query text.
	Question string
	// Response is the model's answer.
	Response string
	// Sources are the cited document ids in rank order. Missing ids are
	// recorded as empty strings.
	Sources []string
	// Expected is the reference answer (eval only).
	Expected string
	// Verdict is "pass" or "fail" (eval only).
	Verdict string
	// CreatedAt is when the run was persisted.
	CreatedAt time.Time
}

// HistoryStore persists and retrieves run history. Implementations must be
// safe for concurrent use.
type HistoryStore interface {
	// Record persists run and returns its assigned ID.
	Record(ctx context.Context, run *Run) (string, error)
	// Recent returns the most recent n runs ordered oldest-first.
	// If fewer than n runs exist, all are returned.
	Recent(ctx context.Context, n int) ([]Run, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a HistoryStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.docrag/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".docrag")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
    seq          INTEGER PRIMARY KEY AUTOINCREMENT,
    id           TEXT    NOT NULL UNIQUE,
    kind         TEXT    NOT NULL CHECK(kind IN ('query','eval')),
    question     TEXT    NOT NULL,
    response     TEXT    NOT NULL,
    sources      TEXT    NOT NULL,  -- JSON array of source ids
    expected     TEXT    NOT NULL DEFAULT '',
    verdict      TEXT    NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL   -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_runs_created ON runs (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record persists run. A zero CreatedAt is set to now.
func (s *SQLiteStore) Record(ctx context.Context, run *Run) (string, error) {
	if run.Kind != KindQuery && run.Kind != KindEval {
		return "", fmt.Errorf("store: record: invalid kind %q", run.Kind)
	}
	sources := run.Sources
	if sources == nil {
		sources = []string{}
	}
	srcJSON, err := json.Marshal(sources)
	if err != nil {
		return "", fmt.Errorf("store: record: marshal sources: %w", err)
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	id := uuid.NewString()

	const q = `INSERT INTO runs (id, kind, question, response, sources, expected, verdict, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, id, string(run.Kind), run.Question, run.Response,
		string(srcJSON), run.Expected, run.Verdict, createdAt.Unix()); err != nil {
		return "", fmt.Errorf("store: record: %w", err)
	}
	return id, nil
}

// Recent returns the most recent n runs, ordered oldest-first. Uses a
// subquery to select the tail then re-order for display.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Run, error) {
	const q = `
SELECT id, kind, question, response, sources, expected, verdict, created_at FROM (
    SELECT seq, id, kind, question, response, sources, expected, verdict, created_at
    FROM   runs
    ORDER  BY created_at DESC, seq DESC
    LIMIT  ?
) ORDER BY created_at ASC, seq ASC`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var kind, srcJSON string
		var ts int64
		if err := rows.Scan(&r.ID, &kind, &r.Question, &r.Response, &srcJSON, &r.Expected, &r.Verdict, &ts); err != nil {
			return nil, fmt.Errorf("store: recent scan: %w", err)
		}
		if err := json.Unmarshal([]byte(srcJSON), &r.Sources); err != nil {
			return nil, fmt.Errorf("store: recent decode sources: %w", err)
		}
		r.Kind = Kind(kind)
		r.CreatedAt = time.Unix(ts, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: recent rows: %w", err)
	}
	return runs, nil
}

// Ping verifies the database is reachable. Used by readiness probes.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("store: ping: %w", err)
	}
	return nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}
