package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/rojgar-pipeline/internal/config"
	"github.com/jonathan/rojgar-pipeline/internal/db"
	"github.com/jonathan/rojgar-pipeline/internal/logging"
	"github.com/jonathan/rojgar-pipeline/internal/observability"
	"github.com/jonathan/rojgar-pipeline/internal/store"
)

var statsCommand = &cobra.Command{
	Use:   "stats",
	Short: "Show partition sizes and recent cycles",
	RunE:  runStatsCmd,
}

var statsRuns int

func init() {
	statsCommand.Flags().IntVar(&statsRuns, "runs", 5, "Number of recent cycles to list (requires db.url)")
	rootCmd.AddCommand(statsCommand)
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development, verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	state, err := store.New(cfg.Store.Path, logger).Snapshot()
	if err != nil {
		return fmt.Errorf("failed to load store %s: %w", cfg.Store.Path, err)
	}
	out := cmd.OutOrStdout()
	observability.NewPrinter(out).PrintStoreSummary(state)

	if cfg.DB.URL == "" || statsRuns <= 0 {
		return nil
	}

	database, err := db.Connect(cmd.Context(), cfg.DB.URL)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListRuns(cmd.Context(), statsRuns)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "\nRecent cycles:\n")
	for _, r := range runs {
		_, _ = fmt.Fprintf(out, "  %s  %-9s  inserted=%d duplicates=%d failed=%d\n",
			r.StartedAt.Format(time.RFC3339), r.Status, r.Counts.Inserted, r.Counts.Duplicates, r.Counts.Failed)
	}
	return nil
}
