// Package csvfile stores each table as a delimited file on disk.
//
// Whole-table writes go to a temporary file in the same directory and are
// renamed over the target, so readers never observe a half-written table.
package csvfile

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"finassist/internal/core"
	ports "finassist/internal/sheets"
)

// File names under the data directory.
const (
	TransactionsFile = "income_expenses.csv"
	GoalsFile        = "saving_goals.csv"
	JournalFile      = "transactions.csv"
)

type Table[T any] struct {
	mu    sync.Mutex
	path  string
	codec ports.Codec[T]
}

var (
	_ ports.TransactionTable = (*Table[core.Transaction])(nil)
	_ ports.GoalTable        = (*Table[core.Goal])(nil)
	_ ports.JournalTable     = (*Table[core.JournalEntry])(nil)
	_ ports.Versioned        = (*Table[core.Transaction])(nil)
)

func New[T any](path string, codec ports.Codec[T]) *Table[T] {
	return &Table[T]{path: path, codec: codec}
}

// Tables is the set of CSV-backed tables rooted at one directory.
type Tables struct {
	Transactions *Table[core.Transaction]
	Goals        *Table[core.Goal]
	Journal      *Table[core.JournalEntry]
}

// Open prepares dir and returns the three tables. Files are created lazily
// on first write.
func Open(dir string) (*Tables, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Tables{
		Transactions: New(filepath.Join(dir, TransactionsFile), ports.TransactionCodec),
		Goals:        New(filepath.Join(dir, GoalsFile), ports.GoalCodec),
		Journal:      New(filepath.Join(dir, JournalFile), ports.JournalCodec),
	}, nil
}

func (t *Table[T]) Path() string { return t.path }

// Load reads the whole table. A missing file is an empty table. Rows
// written before IDs existed are given one and the file is rewritten so
// the IDs stay stable across loads.
func (t *Table[T]) Load(ctx context.Context) ([]T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx)
}

func (t *Table[T]) load(ctx context.Context) ([]T, error) {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", t.path, err)
	}
	items, missingID, err := t.codec.ReadCSV(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if missingID {
		items = t.codec.AssignIDs(items)
		slog.InfoContext(ctx, "Assigned ids to legacy rows", "table", t.codec.Name, "path", t.path)
		if err := t.write(items); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Version hashes the file contents, so rewrites by other processes are
// seen even when they land within the filesystem's timestamp resolution.
// A missing file has the empty version.
func (t *Table[T]) Version(_ context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", t.path, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (t *Table[T]) Upsert(ctx context.Context, row T) error {
	if t.codec.ID(row) == "" {
		return fmt.Errorf("%s upsert: empty id", t.codec.Name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	items, err := t.load(ctx)
	if err != nil {
		return err
	}
	if i := t.codec.IndexOf(items, t.codec.ID(row)); i >= 0 {
		items[i] = row
	} else {
		items = append(items, row)
	}
	return t.write(items)
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	items, err := t.load(ctx)
	if err != nil {
		return err
	}
	i := t.codec.IndexOf(items, id)
	if i < 0 {
		return fmt.Errorf("%s delete %s: %w", t.codec.Name, id, core.ErrNotFound)
	}
	return t.write(append(items[:i], items[i+1:]...))
}

func (t *Table[T]) Save(_ context.Context, rows []T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.write(t.codec.AssignIDs(append([]T(nil), rows...)))
}

func (t *Table[T]) write(items []T) error {
	var buf bytes.Buffer
	if err := t.codec.WriteCSV(&buf, items); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(t.path), "."+filepath.Base(t.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return fmt.Errorf("replace %s: %w", t.path, err)
	}
	return nil
}
