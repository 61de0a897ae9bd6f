package backend

import (
	"context"

	"finassist/internal/amqp"
	"finassist/internal/sheets"
)

// Backend is the set of tables the application reads and writes.
type Backend struct {
	Transactions sheets.TransactionTable
	Goals        sheets.GoalTable
	Journal      sheets.JournalTable

	// Publisher is nil when change events are disabled.
	Publisher *amqp.Client
	// Ping reports storage health; nil means always healthy.
	Ping func(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend *Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// CSV specific
	DataDirectory string

	// SQLite specific
	SQLiteDBPath string

	// Change events, shared by every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

// BackendType represents the type of backend
type BackendType string

const (
	CSVBackend    BackendType = "csv"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case CSVBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
