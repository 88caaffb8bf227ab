package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	report_path TEXT NOT NULL,
	artifacts   INTEGER NOT NULL,
	matched     INTEGER NOT NULL,
	changed     INTEGER NOT NULL,
	failed      INTEGER NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS patch_events (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id),
	file_name   TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	backup_path TEXT,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_patch_events_run_id ON patch_events(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordRun inserts a run summary, assigning an ID if the caller left it
// empty.
func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, report_path, artifacts, matched, changed, failed, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), run.ReportPath,
		run.Artifacts, run.Matched, run.Changed, run.Failed,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert run")
}

// RecordPatchEvents inserts the patch outcomes for one run in a single
// transaction.
func (s *SQLiteStore) RecordPatchEvents(ctx context.Context, events []PatchEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	for i := range events {
		ev := &events[i]
		if ev.ID == "" {
			ev.ID = uuid.New().String()
		}
		if ev.CreatedAt.IsZero() {
			ev.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO patch_events (id, run_id, file_name, outcome, backup_path, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			ev.ID, ev.RunID, ev.FileName, ev.Outcome, ev.BackupPath, ev.CreatedAt.UTC(),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert patch event %s", ev.FileName)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit patch events")
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, report_path, artifacts, matched, changed, failed, started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []Run
	for rows.Next() {
		var r Run
		var kind string
		if err := rows.Scan(&r.ID, &kind, &r.ReportPath, &r.Artifacts, &r.Matched, &r.Changed, &r.Failed, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Kind = RunKind(kind)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

// ListPatchEvents returns the patch events of one run in insertion order.
func (s *SQLiteStore) ListPatchEvents(ctx context.Context, runID string) ([]PatchEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, file_name, outcome, backup_path, created_at
		 FROM patch_events WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list patch events")
	}
	defer rows.Close() //nolint:errcheck

	var events []PatchEvent
	for rows.Next() {
		var ev PatchEvent
		var backup sql.NullString
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.FileName, &ev.Outcome, &backup, &ev.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan patch event")
		}
		ev.BackupPath = backup.String
		events = append(events, ev)
	}
	return events, eris.Wrap(rows.Err(), "sqlite: iterate patch events")
}
