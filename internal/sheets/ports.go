package sheets

import (
	"context"

	"finassist/internal/core"
)

// Table names, shared by storage adapters and change events.
const (
	TableTransactions = "income_expenses"
	TableGoals        = "saving_goals"
	TableJournal      = "transactions"
)

// Ports for outbound adapters.
type (
	// Table is a whole-table store keyed by row ID. Load returns rows in
	// their stored order; a table that was never written loads empty.
	// Delete of an unknown ID returns core.ErrNotFound; Upsert of an
	// unknown ID appends.
	Table[T any] interface {
		Load(ctx context.Context) ([]T, error)
		Upsert(ctx context.Context, row T) error
		Delete(ctx context.Context, id string) error
		Save(ctx context.Context, rows []T) error
	}

	// Versioned tables report a token that changes whenever the stored rows
	// change, including writes made by another process. Equal tokens mean
	// equal contents.
	Versioned interface {
		Version(ctx context.Context) (string, error)
	}

	TransactionTable = Table[core.Transaction]
	GoalTable        = Table[core.Goal]
	JournalTable     = Table[core.JournalEntry]

	// GoalExporter mirrors the savings-goal table to an external sheet.
	GoalExporter interface {
		ExportGoals(ctx context.Context, goals []core.Goal) error
	}
)
