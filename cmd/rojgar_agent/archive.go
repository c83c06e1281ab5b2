package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/rojgar-pipeline/internal/archive"
	"github.com/jonathan/rojgar-pipeline/internal/config"
	"github.com/jonathan/rojgar-pipeline/internal/logging"
	"github.com/jonathan/rojgar-pipeline/internal/observability"
	"github.com/jonathan/rojgar-pipeline/internal/store"
)

var archiveCommand = &cobra.Command{
	Use:   "archive",
	Short: "Move expired records into archived_content",
	Long:  `Applies the per-category expiry rules to the store once, without discovering or synthesizing anything.`,
	RunE:  runArchiveCmd,
}

func init() {
	rootCmd.AddCommand(archiveCommand)
}

func runArchiveCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Read(configPath)
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development, verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	engine := archive.New(archive.DefaultRules(), nil, loc)
	report, err := engine.RunStore(cmd.Context(), store.New(cfg.Store.Path, logger))
	if err != nil {
		return fmt.Errorf("failed to archive %s: %w", cfg.Store.Path, err)
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintArchiveReport(report)
	return nil
}
