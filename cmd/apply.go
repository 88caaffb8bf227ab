package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ledgerline/costsync/internal/patch"
	"github.com/ledgerline/costsync/internal/report"
	"github.com/ledgerline/costsync/internal/store"
)

var (
	applyReport    string
	applyBackupDir string
	applyDryRun    bool
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Rewrite mismatched declared costs from a report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if applyReport != "" {
			cfg.Report.Path = applyReport
		}
		if applyBackupDir != "" {
			cfg.Patch.BackupDir = applyBackupDir
		}
		if err := cfg.Validate("apply"); err != nil {
			return err
		}

		// A report that cannot be read back is batch-fatal; per-artifact
		// problems below are not.
		records, err := report.Read(cfg.Report.Path)
		if err != nil {
			return err
		}

		applier := patch.NewApplier(cfg.Patch.BackupDir, patch.WithDryRun(applyDryRun))

		started := time.Now().UTC()
		results := applier.Apply(records)

		var patched, stale, failed, noop int
		for _, res := range results {
			switch res.Outcome {
			case patch.OutcomePatched:
				patched++
			case patch.OutcomeStale:
				stale++
			case patch.OutcomeFailed:
				failed++
			case patch.OutcomeNoop:
				noop++
			}
		}

		if !applyDryRun {
			recordApplyRun(ctx, results, patched, stale, failed, started)
		}

		zap.L().Info("patch phase complete",
			zap.String("report", cfg.Report.Path),
			zap.Int("patched", patched),
			zap.Int("stale", stale),
			zap.Int("failed", failed),
			zap.Int("noop", noop),
			zap.Bool("dry_run", applyDryRun),
		)
		fmt.Fprintf(os.Stdout, "%d records: %d patched, %d stale, %d failed, %d untouched\n",
			len(results), patched, stale, failed, noop)

		return nil
	},
}

func noopCount(results []patch.Result) int {
	n := 0
	for _, res := range results {
		if res.Outcome == patch.OutcomeNoop {
			n++
		}
	}
	return n
}

func recordApplyRun(ctx context.Context, results []patch.Result, patched, stale, failed int, started time.Time) {
	st, err := openStore()
	if err != nil || st == nil {
		if err != nil {
			zap.L().Warn("run history unavailable", zap.Error(err))
		}
		return
	}
	defer st.Close() //nolint:errcheck

	if err := st.Migrate(ctx); err != nil {
		zap.L().Warn("run history migration failed", zap.Error(err))
		return
	}

	run := &store.Run{
		Kind:       store.RunApply,
		ReportPath: cfg.Report.Path,
		Artifacts:  len(results),
		Matched:    noopCount(results),
		Changed:    patched,
		Failed:     stale + failed,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if err := st.RecordRun(ctx, run); err != nil {
		zap.L().Warn("run history write failed", zap.Error(err))
		return
	}

	events := make([]store.PatchEvent, 0, len(results))
	for _, res := range results {
		events = append(events, store.PatchEvent{
			RunID:      run.ID,
			FileName:   res.FileName,
			Outcome:    string(res.Outcome),
			BackupPath: res.BackupPath,
		})
	}
	if err := st.RecordPatchEvents(ctx, events); err != nil {
		zap.L().Warn("patch event write failed", zap.Error(err))
	}
}

func init() {
	applyCmd.Flags().StringVar(&applyReport, "report", "", "report file to apply (overrides report.path)")
	applyCmd.Flags().StringVar(&applyBackupDir, "backup-dir", "", "backup directory (overrides patch.backup_dir)")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "show intended rewrites without modifying files")
	rootCmd.AddCommand(applyCmd)
}
