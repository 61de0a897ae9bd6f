package services

import (
	"context"
	"log/slog"

	"finassist/internal/amqp"
)

// ChangePublisher announces table writes to downstream consumers.
type ChangePublisher interface {
	PublishTableChanged(ctx context.Context, msg *amqp.TableChangedMessage) error
}

// Publisher adapts an optional AMQP client; a nil client disables events.
func Publisher(c *amqp.Client) ChangePublisher {
	if c == nil {
		return nil
	}
	return c
}

// publish never fails the caller: the table write already succeeded.
func publish(ctx context.Context, p ChangePublisher, table, op, rowID string, count int) {
	if p == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping change event", "table", table, "operation", op)
		return
	}
	msg := amqp.NewTableChangedMessage(table, op, rowID, count)
	if err := p.PublishTableChanged(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event",
			"table", table,
			"operation", op,
			"row_id", rowID,
			"error", err)
	}
}
