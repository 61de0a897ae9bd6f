package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"finassist/internal/amqp"
	"finassist/internal/cache"
	"finassist/internal/core"
	"finassist/internal/sheets"
)

const summaryTTL = 5 * time.Minute

// TransactionService owns the income/expense table: catch-up passes, adds,
// deletes and cached summaries.
type TransactionService struct {
	mu        sync.Mutex
	table     sheets.TransactionTable
	expander  *Expander
	publisher ChangePublisher
	summaries *cache.LRU[core.Totals]
}

// NewTransactionService wires the table with an expander. publisher may be
// nil; cacheSize < 1 gives a single-entry cache.
func NewTransactionService(table sheets.TransactionTable, expander *Expander, publisher ChangePublisher, cacheSize int) *TransactionService {
	return &TransactionService{
		table:     table,
		expander:  expander,
		publisher: publisher,
		summaries: cache.NewLRU[core.Totals](cacheSize, summaryTTL),
	}
}

// SummaryCache exposes the cache so it can be registered with a janitor.
func (s *TransactionService) SummaryCache() cache.Cleaner {
	return s.summaries
}

// CatchUp materializes every missed occurrence up to today and persists the
// table when anything changed. It returns the number of rows added.
func (s *TransactionService) CatchUp(ctx context.Context, today core.Date) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.table.Load(ctx)
	if err != nil {
		return 0, storageErr(sheets.TableTransactions, "load", err)
	}
	updated, added, err := s.expander.Expand(records, today)
	if err != nil {
		return 0, storageErr(sheets.TableTransactions, "expand", err)
	}
	if added == 0 {
		return 0, nil
	}
	if err := s.table.Save(ctx, updated); err != nil {
		return 0, storageErr(sheets.TableTransactions, "save", err)
	}
	s.summaries.Purge()

	slog.InfoContext(ctx, "Back-filled recurring transactions",
		"added", added,
		"today", today.String(),
		"mode", s.expander.Mode())
	publish(ctx, s.publisher, sheets.TableTransactions, amqp.OpBackfill, "", added)
	return added, nil
}

// List returns every record filtered by kind and frequency (empty matches all).
func (s *TransactionService) List(ctx context.Context, kind core.Kind, freq core.Frequency) ([]core.Transaction, error) {
	records, err := s.table.Load(ctx)
	if err != nil {
		return nil, storageErr(sheets.TableTransactions, "load", err)
	}
	return core.Filter(records, kind, freq), nil
}

// Add validates and appends a record, assigning an ID when missing.
func (s *TransactionService) Add(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = core.NewID()
	}

	s.mu.Lock()
	err := s.table.Upsert(ctx, t)
	s.summaries.Purge()
	s.mu.Unlock()
	if err != nil {
		return core.Transaction{}, storageErr(sheets.TableTransactions, "save", err)
	}

	slog.InfoContext(ctx, "Transaction added",
		"id", t.ID,
		"kind", t.Kind,
		"frequency", t.Frequency,
		"amount_cents", t.Amount.Cents)
	publish(ctx, s.publisher, sheets.TableTransactions, amqp.OpInsert, t.ID, 1)
	return t, nil
}

// Delete removes exactly one record. Unknown IDs return core.ErrNotFound.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.table.Delete(ctx, id)
	s.summaries.Purge()
	s.mu.Unlock()
	if errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if err != nil {
		return storageErr(sheets.TableTransactions, "delete", err)
	}

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	publish(ctx, s.publisher, sheets.TableTransactions, amqp.OpDelete, id, 1)
	return nil
}

// Summary totals the filtered view. Results are cached per table version,
// so writes by other processes sharing the table are picked up on the next
// call.
func (s *TransactionService) Summary(ctx context.Context, kind core.Kind, freq core.Frequency) (core.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	filter := string(kind) + "|" + string(freq) + "|"
	before, versioned := s.tableVersion(ctx)
	if versioned {
		if t, ok := s.summaries.Get(filter + before); ok {
			return t, nil
		}
	}
	records, err := s.table.Load(ctx)
	if err != nil {
		return core.Totals{}, storageErr(sheets.TableTransactions, "load", err)
	}
	t := core.Summarize(core.Filter(records, kind, freq))

	// A write landing between the version read and the load would file
	// fresh totals under an old version.
	if after, ok := s.tableVersion(ctx); versioned && ok && after == before {
		s.summaries.Set(filter+before, t)
	}
	return t, nil
}

// tableVersion reports the table's current version. Tables that cannot
// report one are never cached.
func (s *TransactionService) tableVersion(ctx context.Context) (string, bool) {
	v, ok := s.table.(sheets.Versioned)
	if !ok {
		return "", false
	}
	version, err := v.Version(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Table version unavailable, summary not cached",
			"table", sheets.TableTransactions,
			"error", err)
		return "", false
	}
	return version, true
}

// Balance is the summary balance over the whole table.
func (s *TransactionService) Balance(ctx context.Context) (core.Money, error) {
	t, err := s.Summary(ctx, "", "")
	if err != nil {
		return core.Money{}, err
	}
	return t.Balance, nil
}
