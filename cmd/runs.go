package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ledgerline/costsync/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent analysis and patch runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("runs"); err != nil {
			return err
		}
		st, err := openStore()
		if err != nil {
			return eris.Wrap(err, "open run history")
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		runs, err := st.ListRuns(ctx, runsLimit)
		if err != nil {
			return eris.Wrap(err, "list runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs recorded.")
			return nil
		}

		formatRuns(os.Stdout, runs)
		return nil
	},
}

func formatRuns(w io.Writer, runs []store.Run) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tKIND\tARTIFACTS\tMATCHED\tCHANGED\tFAILED\tREPORT\tID")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			run.StartedAt.Local().Format(time.DateTime),
			run.Kind,
			run.Artifacts,
			run.Matched,
			run.Changed,
			run.Failed,
			run.ReportPath,
			run.ID,
		)
	}
	_ = tw.Flush()
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max number of runs to list")
	rootCmd.AddCommand(runsCmd)
}
