package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ledgerline/costsync/internal/artifact"
	"github.com/ledgerline/costsync/internal/placeholder"
	"github.com/ledgerline/costsync/internal/reconcile"
	"github.com/ledgerline/costsync/internal/report"
	"github.com/ledgerline/costsync/internal/store"
	"github.com/ledgerline/costsync/pkg/oracle"
)

var (
	analyzeDir     string
	analyzePattern string
	analyzeReport  string
	analyzeTokens  string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Scan artifacts and reconcile their declared costs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if analyzeDir != "" {
			cfg.Scan.Dir = analyzeDir
		}
		if analyzePattern != "" {
			cfg.Scan.Pattern = analyzePattern
		}
		if analyzeReport != "" {
			cfg.Report.Path = analyzeReport
		}
		if analyzeTokens != "" {
			cfg.Analyze.TokensPath = analyzeTokens
		}
		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		table := placeholder.DefaultTable()
		if cfg.Analyze.TokensPath != "" {
			t, err := placeholder.LoadTable(cfg.Analyze.TokensPath)
			if err != nil {
				return err
			}
			table = t
		}

		// Enumeration failure is the one batch-fatal condition here.
		paths, err := artifact.Scan(cfg.Scan.Dir, cfg.Scan.Pattern)
		if err != nil {
			return err
		}
		zap.L().Info("artifacts found",
			zap.String("dir", cfg.Scan.Dir),
			zap.String("pattern", cfg.Scan.Pattern),
			zap.Int("count", len(paths)),
		)

		client := oracle.NewClient(cfg.Oracle.Token,
			oracle.WithBaseURL(cfg.Oracle.BaseURL),
			oracle.WithAPIVersion(cfg.Oracle.APIVersion),
			oracle.WithAuthHeader(cfg.Oracle.AuthHeader),
		)
		engine := reconcile.NewEngine(client, table,
			reconcile.WithRate(cfg.Oracle.RequestsPerSec),
			reconcile.WithConcurrency(cfg.Analyze.Concurrency),
		)

		started := time.Now().UTC()
		records, err := engine.Run(ctx, paths)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		if err := report.Write(cfg.Report.Path, records); err != nil {
			return err
		}

		summary := summarize(records)
		recordAnalyzeRun(ctx, summary, started)

		zap.L().Info("analysis complete",
			zap.String("report", cfg.Report.Path),
			zap.Int("artifacts", len(records)),
			zap.Int("matches", summary.matches),
			zap.Int("mismatches", summary.mismatches),
			zap.Int("failures", summary.failures),
		)
		fmt.Fprintf(os.Stdout, "%d artifacts: %d match, %d mismatch, %d failed; report written to %s\n",
			len(records), summary.matches, summary.mismatches, summary.failures, cfg.Report.Path)

		return nil
	},
}

type runSummary struct {
	total      int
	matches    int
	mismatches int
	failures   int
}

func summarize(records []reconcile.Record) runSummary {
	s := runSummary{total: len(records)}
	for _, rec := range records {
		switch {
		case rec.Status == reconcile.StatusMatch:
			s.matches++
		case rec.Status.Mismatch():
			s.mismatches++
		default:
			s.failures++
		}
	}
	return s
}

// recordAnalyzeRun writes run history. History is best effort; a broken
// store never fails the batch.
func recordAnalyzeRun(ctx context.Context, summary runSummary, started time.Time) {
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
		Kind:       store.RunAnalyze,
		ReportPath: cfg.Report.Path,
		Artifacts:  summary.total,
		Matched:    summary.matches,
		Changed:    summary.mismatches,
		Failed:     summary.failures,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}
	if err := st.RecordRun(ctx, run); err != nil {
		zap.L().Warn("run history write failed", zap.Error(err))
	}
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDir, "dir", "", "directory containing generated artifacts (overrides scan.dir)")
	analyzeCmd.Flags().StringVar(&analyzePattern, "pattern", "", "artifact file name pattern (overrides scan.pattern)")
	analyzeCmd.Flags().StringVar(&analyzeReport, "report", "", "report file to write (overrides report.path)")
	analyzeCmd.Flags().StringVar(&analyzeTokens, "tokens", "", "YAML file of placeholder token overrides (overrides analyze.tokens_path)")
	rootCmd.AddCommand(analyzeCmd)
}
