package main

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"finassist/internal/cli"
	"finassist/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("recurring-worker", "info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger("recurring-worker", cfg.LogLevel)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	result := cli.OpenBackend(ctx, logger, cfg)
	defer cli.Close(logger, result)

	processor := services.NewRecurringProcessor(cli.NewTransactionService(logger, cfg, result.Backend))
	logger.Info("Recurring processor configured",
		"interval", cfg.RecurringInterval,
		"mode", cfg.RecurringMode,
		"backend", cfg.DataBackend)

	run := func(now time.Time) {
		count, err := processor.Process(ctx, now)
		if err != nil {
			logger.Error("Recurring back-fill failed", "error", err)
			return
		}
		logger.Info("Recurring back-fill complete",
			"added", count,
			"next_check", now.Add(cfg.RecurringInterval).Format("15:04:05"))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		run(time.Now())
		ticker := time.NewTicker(cfg.RecurringInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case now := <-ticker.C:
				run(now)
			}
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Recurring worker stopped", "error", err)
		return
	}
	logger.Info("Recurring worker shutdown complete")
}
