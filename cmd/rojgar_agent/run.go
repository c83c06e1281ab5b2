package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/rojgar-pipeline/internal/config"
	"github.com/jonathan/rojgar-pipeline/internal/logging"
	"github.com/jonathan/rojgar-pipeline/internal/observability"
	"github.com/jonathan/rojgar-pipeline/internal/pipeline"
	"github.com/jonathan/rojgar-pipeline/internal/server"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Poll sources and process new announcements",
	Long: `Runs the pipeline: archival -> discovery -> fetch -> clustering -> synthesis -> storage.

Without --once the cycle repeats every pipeline.interval until interrupted, and the ops
server (health, metrics, summary) listens on server.addr.`,
	RunE: runPipelineCmd,
}

var runOnce bool

func init() {
	runCommand.Flags().BoolVar(&runOnce, "once", false, "Run a single cycle and exit")
	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development, verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	printer := observability.NewPrinter(cmd.OutOrStdout())
	var onProgress pipeline.ProgressCallback
	if verbose {
		onProgress = printer.PrintProgress
	}

	a, err := buildApp(ctx, cfg, onProgress, logger)
	if err != nil {
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	defer a.Close()

	logger.Info("pipeline configured",
		zap.Int("sources", len(cfg.Pipeline.Sources)),
		zap.Duration("interval", cfg.Pipeline.Interval),
		zap.Float64("threshold", cfg.Pipeline.Threshold),
		zap.String("store", cfg.Store.Path),
	)

	if runOnce {
		report, err := a.orchestrator.RunCycle(ctx)
		if err != nil {
			return err
		}
		if !verbose {
			printer.PrintCycleReport(report)
		}
		return nil
	}

	return serveLoop(ctx, cfg, a, logger)
}

// serveLoop runs the polling loop beside the ops server until ctx is cancelled
// or either of them fails.
func serveLoop(ctx context.Context, cfg *config.Config, a *app, logger *zap.Logger) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.orchestrator.Loop(gctx, cfg.Pipeline.Interval)
	})

	if cfg.Server.Addr != "" {
		var runs server.RunLister
		if a.runs != nil {
			runs = a.runs
		}
		srv := server.New(server.Config{Addr: cfg.Server.Addr}, a.store, a.orchestrator, runs, logger)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}

	return g.Wait()
}
