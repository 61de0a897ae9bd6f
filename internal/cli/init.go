// Package cli holds the start-up steps shared by the binaries under cmd/.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"finassist/internal/backend"
	"finassist/internal/config"
	applog "finassist/internal/log"
	"finassist/internal/services"
)

// SetupLogger installs a text logger at the given level as the slog default.
// An unknown level falls back to info with a warning.
func SetupLogger(component, level string) *slog.Logger {
	lvl, err := applog.ParseLevel(level)
	logger := applog.New(applog.Config{Level: lvl, Component: component, Output: os.Stdout})
	applog.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info log level", "error", err)
	}
	return logger.Logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig exits the process when the configuration is invalid.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// OpenBackend builds the configured storage backend or exits.
func OpenBackend(ctx context.Context, logger *slog.Logger, cfg *config.Config) *backend.BackendResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", bcfg.Type)
		os.Exit(1)
	}
	return result
}

// NewTransactionService wires the income/expense service from cfg or exits.
func NewTransactionService(logger *slog.Logger, cfg *config.Config, b *backend.Backend) *services.TransactionService {
	mode, err := services.ParseStepMode(cfg.RecurringMode)
	if err != nil {
		logger.Error("Invalid recurring mode", "error", err)
		os.Exit(1)
	}
	expander, err := services.NewExpander(mode)
	if err != nil {
		logger.Error("Failed to create expander", "error", err)
		os.Exit(1)
	}
	return services.NewTransactionService(b.Transactions, expander, services.Publisher(b.Publisher), cfg.SummaryCacheSize)
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown signal received")
	}()
	return ctx, stop
}

// Close runs the backend cleanup, logging any failure.
func Close(logger *slog.Logger, result *backend.BackendResult) {
	if result == nil || result.Cleanup == nil {
		return
	}
	if err := result.Cleanup(); err != nil {
		logger.Error("Cleanup failed", "error", err)
	}
}
