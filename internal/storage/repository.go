package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"finassist/internal/core"
	ports "finassist/internal/sheets"

	_ "modernc.org/sqlite"
)

// SQLiteRepository keeps the three tables in one SQLite database.
type SQLiteRepository struct {
	db *sql.DB

	Transactions *Table[core.Transaction]
	Goals        *Table[core.Goal]
	Journal      *Table[core.JournalEntry]
}

var (
	_ ports.TransactionTable = (*Table[core.Transaction])(nil)
	_ ports.GoalTable        = (*Table[core.Goal])(nil)
	_ ports.JournalTable     = (*Table[core.JournalEntry])(nil)
	_ ports.Versioned        = (*Table[core.Transaction])(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite serializes writers; one connection avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:           db,
		Transactions: newTable(db, transactionSchema),
		Goals:        newTable(db, goalSchema),
		Journal:      newTable(db, journalSchema),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

// schema describes how one row type maps onto a SQL table. Columns exclude
// id and position, which every table carries.
type schema[T any] struct {
	table   string
	columns []string
	id      func(T) string
	setID   func(T, string) T
	values  func(T) []any
	scan    func(s scanner) (T, error)
}

// Table is a SQL-backed implementation of the table port.
type Table[T any] struct {
	db *sql.DB
	s  schema[T]

	selectSQL string
	upsertSQL string
	insertSQL string
}

func newTable[T any](db *sql.DB, s schema[T]) *Table[T] {
	cols := strings.Join(s.columns, ", ")
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(s.columns)), ", ")
	updates := make([]string, len(s.columns))
	for i, c := range s.columns {
		updates[i] = c + " = excluded." + c
	}
	return &Table[T]{
		db:        db,
		s:         s,
		selectSQL: fmt.Sprintf("SELECT id, %s FROM %s ORDER BY position, rowid", cols, s.table),
		upsertSQL: fmt.Sprintf(
			"INSERT INTO %[1]s (id, position, %[2]s) VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM %[1]s), %[3]s) "+
				"ON CONFLICT(id) DO UPDATE SET %[4]s",
			s.table, cols, marks, strings.Join(updates, ", ")),
		insertSQL: fmt.Sprintf("INSERT INTO %s (id, position, %s) VALUES (?, ?, %s)", s.table, cols, marks),
	}
}

func (t *Table[T]) Load(ctx context.Context) ([]T, error) {
	rows, err := t.db.QueryContext(ctx, t.selectSQL)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", t.s.table, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := t.s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", t.s.table, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", t.s.table, err)
	}
	return out, nil
}

// Version reads the write counter that triggers keep per table. Every
// connection to the database file sees the same counter.
func (t *Table[T]) Version(ctx context.Context) (string, error) {
	var v int64
	err := t.db.QueryRowContext(ctx, "SELECT version FROM table_versions WHERE name = ?", t.s.table).Scan(&v)
	if err != nil {
		return "", fmt.Errorf("read %s version: %w", t.s.table, err)
	}
	return strconv.FormatInt(v, 10), nil
}

func (t *Table[T]) Upsert(ctx context.Context, row T) error {
	id := t.s.id(row)
	if id == "" {
		return fmt.Errorf("%s upsert: empty id", t.s.table)
	}
	args := append([]any{id}, t.s.values(row)...)
	if _, err := t.db.ExecContext(ctx, t.upsertSQL, args...); err != nil {
		return fmt.Errorf("upsert %s %s: %w", t.s.table, id, err)
	}
	slog.DebugContext(ctx, "Row upserted", "table", t.s.table, "id", id)
	return nil
}

func (t *Table[T]) Delete(ctx context.Context, id string) error {
	res, err := t.db.ExecContext(ctx, "DELETE FROM "+t.s.table+" WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", t.s.table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", t.s.table, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s delete %s: %w", t.s.table, id, core.ErrNotFound)
	}
	return nil
}

// Save replaces the whole table in one transaction.
func (t *Table[T]) Save(ctx context.Context, rows []T) (err error) {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s save: %w", t.s.table, err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Rollback failed", "table", t.s.table, "error", rbErr)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM "+t.s.table); err != nil {
		return fmt.Errorf("clear %s: %w", t.s.table, err)
	}
	stmt, err := tx.PrepareContext(ctx, t.insertSQL)
	if err != nil {
		return fmt.Errorf("prepare %s insert: %w", t.s.table, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		id := t.s.id(row)
		if id == "" {
			id = core.NewID()
			row = t.s.setID(row, id)
		}
		args := append([]any{id, i + 1}, t.s.values(row)...)
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert %s %s: %w", t.s.table, id, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s save: %w", t.s.table, err)
	}
	return nil
}

var transactionSchema = schema[core.Transaction]{
	table:   "income_expenses",
	columns: []string{"date", "kind", "amount_cents", "frequency", "description", "parent_id"},
	id:      func(t core.Transaction) string { return t.ID },
	setID:   func(t core.Transaction, id string) core.Transaction { t.ID = id; return t },
	values: func(t core.Transaction) []any {
		return []any{t.Date.String(), string(t.Kind), t.Amount.Cents, string(t.Frequency), t.Description, t.ParentID}
	},
	scan: func(s scanner) (core.Transaction, error) {
		var (
			t                     core.Transaction
			date, kind, frequency string
		)
		if err := s.Scan(&t.ID, &date, &kind, &t.Amount.Cents, &frequency, &t.Description, &t.ParentID); err != nil {
			return t, err
		}
		var err error
		if t.Date, err = core.ParseDate(date); err != nil {
			return t, err
		}
		if t.Kind, err = core.ParseKind(kind); err != nil {
			return t, err
		}
		if t.Frequency, err = core.ParseFrequency(frequency); err != nil {
			return t, err
		}
		return t, nil
	},
}

var goalSchema = schema[core.Goal]{
	table:   "saving_goals",
	columns: []string{"name", "target_cents", "current_cents", "deadline", "monthly_contribution_cents", "frequency"},
	id:      func(g core.Goal) string { return g.ID },
	setID:   func(g core.Goal, id string) core.Goal { g.ID = id; return g },
	values: func(g core.Goal) []any {
		return []any{g.Name, g.Target.Cents, g.Current.Cents, g.Deadline.String(), g.MonthlyContribution.Cents, string(g.Frequency)}
	},
	scan: func(s scanner) (core.Goal, error) {
		var (
			g                   core.Goal
			deadline, frequency string
		)
		if err := s.Scan(&g.ID, &g.Name, &g.Target.Cents, &g.Current.Cents, &deadline, &g.MonthlyContribution.Cents, &frequency); err != nil {
			return g, err
		}
		var err error
		if g.Deadline, err = core.ParseDate(deadline); err != nil {
			return g, err
		}
		if g.Frequency, err = core.ParseFrequency(frequency); err != nil {
			return g, err
		}
		return g, nil
	},
}

var journalSchema = schema[core.JournalEntry]{
	table:   "transactions",
	columns: []string{"date", "transaction_name", "amount_cents", "category"},
	id:      func(j core.JournalEntry) string { return j.ID },
	setID:   func(j core.JournalEntry, id string) core.JournalEntry { j.ID = id; return j },
	values: func(j core.JournalEntry) []any {
		return []any{j.Date.String(), j.Transaction, j.Amount.Cents, j.Category}
	},
	scan: func(s scanner) (core.JournalEntry, error) {
		var (
			j    core.JournalEntry
			date string
		)
		if err := s.Scan(&j.ID, &date, &j.Transaction, &j.Amount.Cents, &j.Category); err != nil {
			return j, err
		}
		var err error
		if j.Date, err = core.ParseDate(date); err != nil {
			return j, err
		}
		return j, nil
	},
}
