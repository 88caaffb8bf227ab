// Package store persists run history for the analysis and patch phases.
package store

import (
	"context"
	"time"
)

// RunKind distinguishes the two pipeline phases.
type RunKind string

const (
	RunAnalyze RunKind = "analyze"
	RunApply   RunKind = "apply"
)

// Run summarizes one pipeline invocation. The counters are read per kind:
// for analyze runs Matched/Changed/Failed count Match rows, mismatched rows,
// and failure rows; for apply runs they count untouched records, patched
// artifacts, and stale-or-failed patches.
type Run struct {
	ID         string
	Kind       RunKind
	ReportPath string
	Artifacts  int
	Matched    int
	Changed    int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// PatchEvent records what the patch phase did to one artifact.
type PatchEvent struct {
	ID         string
	RunID      string
	FileName   string
	Outcome    string
	BackupPath string
	CreatedAt  time.Time
}

// Store is the run-history backend.
type Store interface {
	Migrate(ctx context.Context) error
	RecordRun(ctx context.Context, run *Run) error
	RecordPatchEvents(ctx context.Context, events []PatchEvent) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListPatchEvents(ctx context.Context, runID string) ([]PatchEvent, error)
	Close() error
}
