// Package ledger keeps a SQLite history of generation runs and the outcome
// of every artifact each run touched.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var ErrUnknownRun = errors.New("unknown run")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at INTEGER NOT NULL,
	finished_at INTEGER,
	error TEXT
);

CREATE TABLE IF NOT EXISTS artifacts (
	run_id INTEGER NOT NULL REFERENCES runs(id),
	builder TEXT NOT NULL,
	artifact TEXT NOT NULL,
	created INTEGER NOT NULL,
	written INTEGER NOT NULL,
	added INTEGER NOT NULL,
	present INTEGER NOT NULL,
	error TEXT
);
CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id);
`

// Artifact is one builder outcome within a run.
type Artifact struct {
	Builder  string
	Artifact string
	Created  bool
	Written  bool
	Added    int
	Present  int
	Err      string
}

type Run struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is in progress
	Err        string
	Artifacts  []Artifact
}

// Ledger is safe for concurrent use.
type Ledger struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// Open creates (or reuses) the ledger database at path, creating parent
// directories as needed.
func Open(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Begin opens a new run and returns its id.
func (l *Ledger) Begin(ctx context.Context) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx, `INSERT INTO runs (started_at) VALUES (?)`, l.now().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	return res.LastInsertId()
}

// Record appends an artifact outcome to run.
func (l *Ledger) Record(ctx context.Context, run int64, a Artifact) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, builder, artifact, created, written, added, present, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run, a.Builder, a.Artifact, a.Created, a.Written, a.Added, a.Present, nullable(a.Err))
	if err != nil {
		return fmt.Errorf("record %s: %w", a.Artifact, err)
	}
	return nil
}

// Finish stamps run as finished with the run-level error, if any.
func (l *Ledger) Finish(ctx context.Context, run int64, runErr error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var msg string
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := l.db.ExecContext(ctx, `UPDATE runs SET finished_at = ?, error = ? WHERE id = ?`,
		l.now().UnixNano(), nullable(msg), run)
	if err != nil {
		return fmt.Errorf("finish run %d: %w", run, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrUnknownRun, run)
	}
	return nil
}

// Recent returns the last limit runs, newest first, with their artifacts
// in recording order.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, error FROM runs
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	var runs []Run
	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
			msg      sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &finished, &msg); err != nil {
			_ = rows.Close()
			return nil, err
		}
		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}
		r.Err = msg.String
		runs = append(runs, r)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		arts, err := l.artifacts(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Artifacts = arts
	}
	return runs, nil
}

func (l *Ledger) artifacts(ctx context.Context, run int64) ([]Artifact, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT builder, artifact, created, written, added, present, error
		FROM artifacts WHERE run_id = ? ORDER BY rowid`, run)
	if err != nil {
		return nil, fmt.Errorf("query artifacts of run %d: %w", run, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Artifact
	for rows.Next() {
		var (
			a   Artifact
			msg sql.NullString
		)
		if err := rows.Scan(&a.Builder, &a.Artifact, &a.Created, &a.Written, &a.Added, &a.Present, &msg); err != nil {
			return nil, err
		}
		a.Err = msg.String
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
