// Package patch rewrites declared costs in source artifacts from a report,
// guarded by a precondition check, a per-run backup, and post-write
// verification with rollback.
package patch

import (
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ledgerline/costsync/internal/artifact"
	"github.com/ledgerline/costsync/internal/reconcile"
)

// Outcome is the per-artifact result of the patch phase.
type Outcome string

const (
	// OutcomePatched means the new literal was written and verified.
	OutcomePatched Outcome = "Patched"
	// OutcomeNoop means the record's status called for no change.
	OutcomeNoop Outcome = "Noop"
	// OutcomeStale means the on-disk declared cost no longer matches the
	// report, so the artifact was skipped rather than force-overwritten.
	OutcomeStale Outcome = "StalePrecondition"
	// OutcomeFailed means the write could not be completed or verified; the
	// artifact was restored from its backup where one had been taken.
	OutcomeFailed Outcome = "PatchFailed"
)

// Result describes what happened to one artifact.
type Result struct {
	FileName   string
	Outcome    Outcome
	BackupPath string
	DryRun     bool
	Err        error
}

// applyState tracks the transactional-apply steps for one artifact. Every
// exit path of applyOne corresponds to exactly one terminal state.
type applyState int

const (
	stateStaged applyState = iota // backup written, artifact untouched
	stateWritten
	stateVerified
	stateRolledBack
)

// Applier applies mismatched report records to the artifact set. Application
// is strictly sequential per artifact; the backup/verify/rollback sequence
// depends on no other writer touching the file mid-flight.
type Applier struct {
	backupDir string
	runStamp  string
	dryRun    bool
	now       func() time.Time
}

// ApplierOption configures the applier.
type ApplierOption func(*Applier)

// WithDryRun makes Apply report intended rewrites without touching any file.
func WithDryRun(dry bool) ApplierOption {
	return func(a *Applier) {
		a.dryRun = dry
	}
}

// WithClock overrides the clock used for the backup run stamp.
func WithClock(now func() time.Time) ApplierOption {
	return func(a *Applier) {
		a.now = now
	}
}

// NewApplier creates an applier whose backups go under
// backupDir/<run-timestamp>/.
func NewApplier(backupDir string, opts ...ApplierOption) *Applier {
	a := &Applier{
		backupDir: backupDir,
		now:       time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	a.runStamp = a.now().UTC().Format("20060102-150405")
	return a
}

// BackupRoot returns the directory backups are written to for this run.
func (a *Applier) BackupRoot() string {
	return filepath.Join(a.backupDir, a.runStamp)
}

// Apply processes every record in report order and returns one result per
// record. Per-artifact failures are recorded, never propagated; a rerun
// against already-patched artifacts yields StalePrecondition skips, which
// makes the phase idempotent.
func (a *Applier) Apply(records []reconcile.Record) []Result {
	results := make([]Result, 0, len(records))
	for _, rec := range records {
		res := a.applyOne(rec)
		switch res.Outcome {
		case OutcomePatched:
			zap.L().Info("artifact patched",
				zap.String("file", res.FileName),
				zap.Int("from", rec.Declared.Value),
				zap.Int("to", rec.Observed.Value),
				zap.Bool("dry_run", res.DryRun),
			)
		case OutcomeNoop:
			zap.L().Debug("no change required", zap.String("file", res.FileName))
		case OutcomeStale:
			zap.L().Warn("precondition mismatch, skipping",
				zap.String("file", res.FileName),
				zap.Int("expected_declared", rec.Declared.Value),
			)
		case OutcomeFailed:
			zap.L().Error("patch failed", zap.String("file", res.FileName), zap.Error(res.Err))
		}
		results = append(results, res)
	}
	return results
}

func (a *Applier) applyOne(rec reconcile.Record) Result {
	res := Result{FileName: rec.FileName, DryRun: a.dryRun}

	if !rec.Status.Mismatch() {
		res.Outcome = OutcomeNoop
		return res
	}

	// Content is re-read fresh; the report may be stale relative to disk.
	text, err := artifact.ReadFile(rec.FileName)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}

	info, err := os.Stat(rec.FileName)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = eris.Wrapf(err, "patch: stat %s", rec.FileName)
		return res
	}

	updated, err := artifact.ReplaceDeclaredCost(text, rec.Declared.Value, rec.Observed.Value)
	if err != nil {
		// Precondition failed: the literal moved on under the report.
		res.Outcome = OutcomeStale
		res.Err = err
		return res
	}

	if a.dryRun {
		res.Outcome = OutcomePatched
		return res
	}

	// Stage: backup strictly before any mutation.
	backupPath, err := a.writeBackup(rec.FileName, text)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Err = err
		return res
	}
	res.BackupPath = backupPath
	state := stateStaged

	// Act.
	if err := os.WriteFile(rec.FileName, []byte(updated), info.Mode()); err == nil {
		state = stateWritten
	} else {
		res.Err = eris.Wrapf(err, "patch: write %s", rec.FileName)
	}

	// Verify.
	if state == stateWritten {
		if err := a.verify(rec.FileName, rec.Observed.Value); err == nil {
			state = stateVerified
		} else {
			res.Err = err
		}
	}

	if state == stateVerified {
		res.Outcome = OutcomePatched
		return res
	}

	// Rollback from the staged backup.
	if err := os.WriteFile(rec.FileName, []byte(text), info.Mode()); err != nil {
		zap.L().Error("rollback failed, backup retained",
			zap.String("file", rec.FileName),
			zap.String("backup", backupPath),
			zap.Error(err),
		)
	} else {
		state = stateRolledBack
	}

	res.Outcome = OutcomeFailed
	return res
}

func (a *Applier) writeBackup(fileName, content string) (string, error) {
	root := a.BackupRoot()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", eris.Wrapf(err, "patch: create backup dir %s", root)
	}

	backupPath := filepath.Join(root, filepath.Base(fileName))
	if err := os.WriteFile(backupPath, []byte(content), 0o644); err != nil {
		return "", eris.Wrapf(err, "patch: write backup %s", backupPath)
	}
	return backupPath, nil
}

// verify re-reads the file and checks the new literal actually landed.
func (a *Applier) verify(fileName string, want int) error {
	text, err := artifact.ReadFile(fileName)
	if err != nil {
		return eris.Wrap(err, "patch: verify read")
	}
	parsed := artifact.Parse(text)
	if !parsed.CostFound || parsed.DeclaredCost != want {
		return eris.Errorf("patch: verification failed, declared cost is not %d after write", want)
	}
	return nil
}
