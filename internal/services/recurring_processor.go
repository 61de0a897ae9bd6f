package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"finassist/internal/core"
)

// RecurringProcessor runs catch-up passes on behalf of the background worker.
type RecurringProcessor struct {
	transactions *TransactionService
}

func NewRecurringProcessor(transactions *TransactionService) *RecurringProcessor {
	return &RecurringProcessor{transactions: transactions}
}

// Process catches the table up to the calendar day of now.
func (p *RecurringProcessor) Process(ctx context.Context, now time.Time) (int, error) {
	if p.transactions == nil {
		return 0, errors.New("processor not properly initialized")
	}
	today := core.DateOf(now)

	slog.InfoContext(ctx, "Processing recurring transactions", "processing_date", today.String())
	added, err := p.transactions.CatchUp(ctx, today)
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Recurring transaction processing complete", "added", added)
	return added, nil
}
