package services

import (
	"context"
	"log/slog"
	"strings"

	"finassist/internal/amqp"
	"finassist/internal/core"
	"finassist/internal/sheets"
)

// JournalService records ad-hoc transactions.
type JournalService struct {
	table     sheets.JournalTable
	publisher ChangePublisher
}

func NewJournalService(table sheets.JournalTable, publisher ChangePublisher) *JournalService {
	return &JournalService{table: table, publisher: publisher}
}

func (s *JournalService) List(ctx context.Context) ([]core.JournalEntry, error) {
	entries, err := s.table.Load(ctx)
	if err != nil {
		return nil, storageErr(sheets.TableJournal, "load", err)
	}
	return entries, nil
}

func (s *JournalService) Add(ctx context.Context, e core.JournalEntry) (core.JournalEntry, error) {
	e.Transaction = strings.TrimSpace(e.Transaction)
	e.Category = strings.TrimSpace(e.Category)
	if err := e.Validate(); err != nil {
		return core.JournalEntry{}, err
	}
	if e.ID == "" {
		e.ID = core.NewID()
	}
	if err := s.table.Upsert(ctx, e); err != nil {
		return core.JournalEntry{}, storageErr(sheets.TableJournal, "save", err)
	}

	slog.InfoContext(ctx, "Journal entry added", "id", e.ID, "category", e.Category, "amount_cents", e.Amount.Cents)
	publish(ctx, s.publisher, sheets.TableJournal, amqp.OpInsert, e.ID, 1)
	return e, nil
}
