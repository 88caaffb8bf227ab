package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ledgerline/costsync/internal/config"
	"github.com/ledgerline/costsync/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "costsync",
	Short: "Reconciles declared query costs against the live cost model",
	Long:  "Scans generated integration sources for embedded queries and their declared costs, checks each query's real cost against the remote service, and rewrites stale cost literals under backup.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// openStore opens the run-history store, or returns nil when run history is
// disabled by an empty store.path.
func openStore() (store.Store, error) {
	if cfg.Store.Path == "" {
		return nil, nil
	}
	return store.NewSQLite(cfg.Store.Path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
