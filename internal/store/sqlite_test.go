package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "costsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestRecordAndListRuns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	started := time.Date(2026, 2, 14, 10, 0, 0, 0, time.UTC)
	older := &Run{
		Kind:       RunAnalyze,
		ReportPath: "cost_report.csv",
		Artifacts:  4,
		Matched:    2,
		Changed:    1,
		Failed:     1,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
	require.NoError(t, st.RecordRun(ctx, older))
	assert.NotEmpty(t, older.ID)

	newer := &Run{
		Kind:       RunApply,
		ReportPath: "cost_report.csv",
		Artifacts:  1,
		Changed:    1,
		StartedAt:  started.Add(time.Hour),
		FinishedAt: started.Add(time.Hour + time.Second),
	}
	require.NoError(t, st.RecordRun(ctx, newer))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, newer.ID, runs[0].ID, "newest first")
	assert.Equal(t, RunApply, runs[0].Kind)
	assert.Equal(t, older.ID, runs[1].ID)
	assert.Equal(t, RunAnalyze, runs[1].Kind)
	assert.Equal(t, 4, runs[1].Artifacts)
	assert.Equal(t, 2, runs[1].Matched)
	assert.Equal(t, 1, runs[1].Changed)
	assert.Equal(t, 1, runs[1].Failed)
	assert.True(t, runs[1].StartedAt.Equal(started))
}

func TestListRunsLimit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := range 5 {
		require.NoError(t, st.RecordRun(ctx, &Run{
			Kind:       RunAnalyze,
			ReportPath: "r.csv",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
		}))
	}

	runs, err := st.ListRuns(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)
}

func TestRecordAndListPatchEvents(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	run := &Run{Kind: RunApply, ReportPath: "r.csv", StartedAt: time.Now().UTC(), FinishedAt: time.Now().UTC()}
	require.NoError(t, st.RecordRun(ctx, run))

	events := []PatchEvent{
		{RunID: run.ID, FileName: "a.php", Outcome: "Patched", BackupPath: "backups/x/a.php"},
		{RunID: run.ID, FileName: "b.php", Outcome: "StalePrecondition"},
	}
	require.NoError(t, st.RecordPatchEvents(ctx, events))
	assert.NotEmpty(t, events[0].ID)
	assert.NotEmpty(t, events[1].ID)

	got, err := st.ListPatchEvents(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.php", got[0].FileName)
	assert.Equal(t, "Patched", got[0].Outcome)
	assert.Equal(t, "backups/x/a.php", got[0].BackupPath)
	assert.Equal(t, "b.php", got[1].FileName)
	assert.Empty(t, got[1].BackupPath)
}

func TestRecordPatchEventsEmpty(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.RecordPatchEvents(context.Background(), nil))
}

func TestListPatchEventsUnknownRun(t *testing.T) {
	st := newTestStore(t)
	got, err := st.ListPatchEvents(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, got)
}
