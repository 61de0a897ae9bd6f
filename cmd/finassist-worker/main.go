package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"finassist/internal/cli"
	"finassist/internal/sheets/google"
	"finassist/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("finassist-worker", "info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger("finassist-worker", cfg.LogLevel)

	if cfg.AMQPURL == "" || !cfg.SheetsEnabled() {
		logger.Error("finassist-worker needs AMQP_URL and GOOGLE_SPREADSHEET_ID")
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	result := cli.OpenBackend(ctx, logger, cfg)
	defer cli.Close(logger, result)
	b := result.Backend
	if b.Publisher == nil {
		logger.Error("AMQP broker unreachable", "url_set", true)
		return
	}

	sheetsClient, err := google.New(ctx, google.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		GoalsSheet:         cfg.GoogleGoalsSheetName,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", "error", err)
		return
	}

	syncWorker := worker.NewGoalSyncWorker(b.Goals, sheetsClient)

	logger.Info("Performing startup goal export")
	if err := syncWorker.Sync(ctx); err != nil {
		logger.Error("Startup goal export failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Publisher.ConsumeTableChanged(gctx, syncWorker.HandleTableChanged)
	})
	g.Go(func() error {
		return syncWorker.RunPeriodic(gctx, cfg.GoalSyncInterval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped", "error", err)
		return
	}
	logger.Info("Worker shutdown complete")
}
