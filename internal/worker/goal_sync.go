package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"finassist/internal/amqp"
	"finassist/internal/sheets"
)

// GoalSyncWorker mirrors the savings-goal table to an external sheet
// whenever a change event for that table arrives.
type GoalSyncWorker struct {
	goals    sheets.GoalTable
	exporter sheets.GoalExporter
}

func NewGoalSyncWorker(goals sheets.GoalTable, exporter sheets.GoalExporter) *GoalSyncWorker {
	return &GoalSyncWorker{goals: goals, exporter: exporter}
}

// HandleTableChanged is the AMQP handler. Events for other tables are
// acknowledged without work; a failed export is returned so the message
// is requeued.
func (w *GoalSyncWorker) HandleTableChanged(ctx context.Context, msg *amqp.TableChangedMessage) error {
	if msg.Table != sheets.TableGoals {
		slog.DebugContext(ctx, "Ignoring change event", "table", msg.Table, "operation", msg.Operation)
		return nil
	}

	slog.InfoContext(ctx, "Processing goal change",
		"operation", msg.Operation,
		"row_id", msg.RowID,
		"timestamp", msg.Timestamp)

	return w.Sync(ctx)
}

// Sync exports the full goal table.
func (w *GoalSyncWorker) Sync(ctx context.Context) error {
	goals, err := w.goals.Load(ctx)
	if err != nil {
		return fmt.Errorf("load goals: %w", err)
	}
	if err := w.exporter.ExportGoals(ctx, goals); err != nil {
		return fmt.Errorf("export goals: %w", err)
	}
	slog.InfoContext(ctx, "Exported goals", "count", len(goals))
	return nil
}

// RunPeriodic re-exports on every tick as a backstop for lost messages.
func (w *GoalSyncWorker) RunPeriodic(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sync(ctx); err != nil {
				slog.ErrorContext(ctx, "Periodic goal export failed", "error", err)
			}
		}
	}
}
