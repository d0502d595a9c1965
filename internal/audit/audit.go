// Package audit records pipeline runs in a sqlite ledger: one row per run,
// plus the stages it executed, the gap-fill decisions and the duplicate
// removals it applied.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	status      TEXT NOT NULL,
	error       TEXT
);
CREATE TABLE IF NOT EXISTS stages (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	stage       TEXT NOT NULL,
	rows_in     INTEGER NOT NULL,
	rows_out    INTEGER NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS gapfill (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	category   TEXT NOT NULL,
	year       INTEGER NOT NULL,
	rows_added INTEGER NOT NULL,
	status     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS dedup (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	dataset     TEXT NOT NULL,
	rows_before INTEGER NOT NULL,
	rows_after  INTEGER NOT NULL
);
`

// Gap-fill statuses.
const (
	GapAdded   = "added"
	GapSkipped = "skipped"
	GapMissing = "missing"
)

// Ledger is an open run ledger.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the ledger at path.
func Open(ctx context.Context, path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ledger: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

// Run is a run being recorded.
type Run struct {
	ID      string
	Started time.Time
	l       *Ledger
}

// Begin inserts a running run with a fresh v4 id.
func (l *Ledger) Begin(ctx context.Context) (*Run, error) {
	r := &Run{ID: uuid.NewString(), Started: l.now(), l: l}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, status) VALUES (?, ?, ?)`,
		r.ID, stamp(r.Started), StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

// Stage records one executed stage.
func (r *Run) Stage(ctx context.Context, s StageRecord) error {
	_, err := r.l.db.ExecContext(ctx,
		`INSERT INTO stages (run_id, stage, rows_in, rows_out, started_at, finished_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, s.Stage, s.RowsIn, s.RowsOut, stamp(s.Started), stamp(s.Finished))
	if err != nil {
		return fmt.Errorf("insert stage %s: %w", s.Stage, err)
	}
	return nil
}

// GapFill records one gap-fill decision for a category and year.
func (r *Run) GapFill(ctx context.Context, category string, year, rowsAdded int, status string) error {
	_, err := r.l.db.ExecContext(ctx,
		`INSERT INTO gapfill (run_id, category, year, rows_added, status) VALUES (?, ?, ?, ?, ?)`,
		r.ID, category, year, rowsAdded, status)
	if err != nil {
		return fmt.Errorf("insert gapfill %s/%d: %w", category, year, err)
	}
	return nil
}

// Dedup records a duplicate removal on a dataset.
func (r *Run) Dedup(ctx context.Context, dataset string, before, after int) error {
	_, err := r.l.db.ExecContext(ctx,
		`INSERT INTO dedup (run_id, dataset, rows_before, rows_after) VALUES (?, ?, ?, ?)`,
		r.ID, dataset, before, after)
	if err != nil {
		return fmt.Errorf("insert dedup %s: %w", dataset, err)
	}
	return nil
}

// Finish marks the run ok, or failed with runErr's message.
func (r *Run) Finish(ctx context.Context, runErr error) error {
	status, msg := StatusOK, sql.NullString{}
	if runErr != nil {
		status, msg = StatusFailed, sql.NullString{String: runErr.Error(), Valid: true}
	}
	_, err := r.l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, status = ?, error = ? WHERE id = ?`,
		stamp(r.l.now()), status, msg, r.ID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// StageRecord is one row of the stages table.
type StageRecord struct {
	Stage    string
	RowsIn   int
	RowsOut  int
	Started  time.Time
	Finished time.Time
}

// RunSummary is one row of the runs table with its stage count.
type RunSummary struct {
	ID       string
	Started  time.Time
	Finished *time.Time
	Status   string
	Error    string
	Stages   int
}

// Runs lists the most recent runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT r.id, r.started_at, r.finished_at, r.status, r.error,
		       (SELECT COUNT(*) FROM stages s WHERE s.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()
	var out []RunSummary
	for rows.Next() {
		var (
			rs               RunSummary
			started          string
			finished, errMsg sql.NullString
		)
		if err := rows.Scan(&rs.ID, &started, &finished, &rs.Status, &errMsg, &rs.Stages); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if rs.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if finished.Valid {
			t, err := time.Parse(time.RFC3339Nano, finished.String)
			if err != nil {
				return nil, fmt.Errorf("parse finished_at: %w", err)
			}
			rs.Finished = &t
		}
		rs.Error = errMsg.String
		out = append(out, rs)
	}
	return out, rows.Err()
}

// ErrUnknownRun is returned for a run id absent from the ledger.
var ErrUnknownRun = errors.New("unknown run")

// Stages lists the stages of a run in execution order.
func (l *Ledger) Stages(ctx context.Context, runID string) ([]StageRecord, error) {
	var n int
	if err := l.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&n); err != nil {
		return nil, fmt.Errorf("lookup run: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%s: %w", runID, ErrUnknownRun)
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT stage, rows_in, rows_out, started_at, finished_at FROM stages WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer rows.Close()
	var out []StageRecord
	for rows.Next() {
		var s StageRecord
		var started, finished string
		if err := rows.Scan(&s.Stage, &s.RowsIn, &s.RowsOut, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		s.Started, _ = time.Parse(time.RFC3339Nano, started)
		s.Finished, _ = time.Parse(time.RFC3339Nano, finished)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GapFills returns (category, year, rows added, status) rows of a run.
func (l *Ledger) GapFills(ctx context.Context, runID string) ([]GapFillRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT category, year, rows_added, status FROM gapfill WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query gapfill: %w", err)
	}
	defer rows.Close()
	var out []GapFillRecord
	for rows.Next() {
		var g GapFillRecord
		if err := rows.Scan(&g.Category, &g.Year, &g.RowsAdded, &g.Status); err != nil {
			return nil, fmt.Errorf("scan gapfill: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// GapFillRecord is one row of the gapfill table.
type GapFillRecord struct {
	Category  string
	Year      int
	RowsAdded int
	Status    string
}
