package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"finassist/internal/core"
	ports "finassist/internal/sheets"
)

// Table keeps rows in memory. It backs tests and ephemeral runs.
type Table[T any] struct {
	mu    sync.Mutex
	codec   ports.Codec[T]
	items   []T
	version uint64
}

var (
	_ ports.TransactionTable = (*Table[core.Transaction])(nil)
	_ ports.GoalTable        = (*Table[core.Goal])(nil)
	_ ports.JournalTable     = (*Table[core.JournalEntry])(nil)
	_ ports.Versioned        = (*Table[core.Transaction])(nil)
)

// New returns a table seeded with rows; rows without an ID get one.
func New[T any](codec ports.Codec[T], seed ...T) *Table[T] {
	items := codec.AssignIDs(append([]T(nil), seed...))
	return &Table[T]{codec: codec, items: items}
}

func NewTransactions(seed ...core.Transaction) *Table[core.Transaction] {
	return New(ports.TransactionCodec, seed...)
}

func NewGoals(seed ...core.Goal) *Table[core.Goal] {
	return New(ports.GoalCodec, seed...)
}

func NewJournal(seed ...core.JournalEntry) *Table[core.JournalEntry] {
	return New(ports.JournalCodec, seed...)
}

func (s *Table[T]) Load(_ context.Context) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]T(nil), s.items...), nil
}

// Version counts writes.
func (s *Table[T]) Version(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.FormatUint(s.version, 10), nil
}

func (s *Table[T]) Upsert(_ context.Context, row T) error {
	if s.codec.ID(row) == "" {
		return fmt.Errorf("%s upsert: empty id", s.codec.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	if i := s.codec.IndexOf(s.items, s.codec.ID(row)); i >= 0 {
		s.items[i] = row
		return nil
	}
	s.items = append(s.items, row)
	return nil
}

func (s *Table[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.codec.IndexOf(s.items, id)
	if i < 0 {
		return fmt.Errorf("%s delete %s: %w", s.codec.Name, id, core.ErrNotFound)
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.version++
	return nil
}

func (s *Table[T]) Save(_ context.Context, rows []T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = s.codec.AssignIDs(append([]T(nil), rows...))
	s.version++
	return nil
}
