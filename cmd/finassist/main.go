package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"finassist/internal/cli"
	apphttp "finassist/internal/http"
	"finassist/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("finassist", "info")
	cfg := cli.LoadAndValidateConfig(logger)
	logger = cli.SetupLogger("finassist", cfg.LogLevel)

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	result := cli.OpenBackend(ctx, logger, cfg)
	defer cli.Close(logger, result)
	b := result.Backend

	pub := services.Publisher(b.Publisher)
	transactions := cli.NewTransactionService(logger, cfg, b)
	goals := services.NewGoalService(b.Goals, transactions, pub)
	journal := services.NewJournalService(b.Journal, pub)

	srv, err := apphttp.NewServer(":"+cfg.Port, apphttp.Services{
		Transactions: transactions,
		Goals:        goals,
		Journal:      journal,
		Ready:        b.Ping,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
	if err != nil {
		logger.Error("Failed to create server", "error", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting finassist server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"recurring_mode", cfg.RecurringMode,
			"amqp", b.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		return
	}
	logger.Info("Server stopped gracefully")
}
