package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finassist/internal/amqp"
	"finassist/internal/sheets/csvfile"
	"finassist/internal/sheets/memory"
	"finassist/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case CSVBackend:
		result, err = f.createCSVBackend(config)
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	f.attachPublisher(ctx, config, result)
	return result, nil
}

func (f *DefaultFactory) createCSVBackend(config Config) (*BackendResult, error) {
	tables, err := csvfile.Open(config.DataDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv tables: %w", err)
	}

	f.logger.Info("Initialized CSV backend", "data_directory", config.DataDirectory)

	return &BackendResult{
		Backend: &Backend{
			Transactions: tables.Transactions,
			Goals:        tables.Goals,
			Journal:      tables.Journal,
		},
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Backend: &Backend{
			Transactions: repo.Transactions,
			Goals:        repo.Goals,
			Journal:      repo.Journal,
			Ping:         repo.Ping,
		},
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	f.logger.Info("Initialized memory backend")
	return &BackendResult{
		Backend: &Backend{
			Transactions: memory.NewTransactions(),
			Goals:        memory.NewGoals(),
			Journal:      memory.NewJournal(),
		},
	}
}

// attachPublisher connects the optional AMQP client. A broker that cannot
// be reached only disables change events.
func (f *DefaultFactory) attachPublisher(ctx context.Context, config Config, result *BackendResult) {
	if config.AMQPURL == "" {
		return
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events", "error", err)
		return
	}
	f.logger.InfoContext(ctx, "Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)

	result.Backend.Publisher = client
	storageCleanup := result.Cleanup
	result.Cleanup = func() error {
		var errs []error
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close amqp client: %w", err))
		}
		if storageCleanup != nil {
			if err := storageCleanup(); err != nil {
				errs = append(errs, fmt.Errorf("close storage: %w", err))
			}
		}
		return errors.Join(errs...)
	}
}
