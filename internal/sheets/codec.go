package sheets

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"finassist/internal/core"
)

// Codec maps a row type to its delimited representation. Columns are
// matched by header name on decode so files with reordered or missing
// optional columns still load.
type Codec[T any] struct {
	Name   string
	Header []string
	ID     func(T) string
	SetID  func(T, string) T
	Encode func(T) []string
	Decode func(row Row) (T, error)
}

// Row gives header-addressed access to one decoded record.
type Row map[string]string

func (r Row) Get(col string) string { return strings.TrimSpace(r[col]) }

const (
	colID     = "ID"
	colParent = "Parent"
)

var TransactionCodec = Codec[core.Transaction]{
	Name:   TableTransactions,
	Header: []string{"Date", "Type", "Amount", "Frequency", "Description", colID, colParent},
	ID:     func(t core.Transaction) string { return t.ID },
	SetID:  func(t core.Transaction, id string) core.Transaction { t.ID = id; return t },
	Encode: func(t core.Transaction) []string {
		return []string{t.Date.String(), string(t.Kind), t.Amount.String(), string(t.Frequency), t.Description, t.ID, t.ParentID}
	},
	Decode: func(r Row) (core.Transaction, error) {
		var t core.Transaction
		var err error
		if t.Date, err = core.ParseDate(r.Get("Date")); err != nil {
			return t, err
		}
		if t.Kind, err = core.ParseKind(r.Get("Type")); err != nil {
			return t, err
		}
		if t.Amount, err = core.ParseMoney("amount", r.Get("Amount")); err != nil {
			return t, err
		}
		if t.Frequency, err = core.ParseFrequency(r.Get("Frequency")); err != nil {
			return t, err
		}
		t.Description = r["Description"]
		t.ID = r.Get(colID)
		t.ParentID = r.Get(colParent)
		return t, nil
	},
}

var GoalCodec = Codec[core.Goal]{
	Name:   TableGoals,
	Header: []string{"Goal", "Target Amount", "Current Amount", "Deadline", "Monthly Contribution", "Frequency", colID},
	ID:     func(g core.Goal) string { return g.ID },
	SetID:  func(g core.Goal, id string) core.Goal { g.ID = id; return g },
	Encode: func(g core.Goal) []string {
		return []string{g.Name, g.Target.String(), g.Current.String(), g.Deadline.String(), g.MonthlyContribution.String(), string(g.Frequency), g.ID}
	},
	Decode: func(r Row) (core.Goal, error) {
		g := core.Goal{Name: r["Goal"], ID: r.Get(colID), Frequency: core.OneTime}
		if strings.TrimSpace(g.Name) == "" {
			g.Name = core.DefaultGoalName
		}
		var err error
		if g.Target, err = core.ParseMoney("target amount", r.Get("Target Amount")); err != nil {
			return g, err
		}
		if g.Current, err = core.ParseMoney("current amount", r.Get("Current Amount")); err != nil {
			return g, err
		}
		if g.Deadline, err = core.ParseDate(r.Get("Deadline")); err != nil {
			return g, err
		}
		if v := r.Get("Monthly Contribution"); v != "" {
			if g.MonthlyContribution, err = core.ParseMoney("monthly contribution", v); err != nil {
				return g, err
			}
		}
		if v := r.Get("Frequency"); v != "" {
			if g.Frequency, err = core.ParseFrequency(v); err != nil {
				return g, err
			}
		}
		return g, nil
	},
}

var JournalCodec = Codec[core.JournalEntry]{
	Name:   TableJournal,
	Header: []string{"Date", "Transaction", "Amount", "Category", colID},
	ID:     func(j core.JournalEntry) string { return j.ID },
	SetID:  func(j core.JournalEntry, id string) core.JournalEntry { j.ID = id; return j },
	Encode: func(j core.JournalEntry) []string {
		return []string{j.Date.String(), j.Transaction, j.Amount.String(), j.Category, j.ID}
	},
	Decode: func(r Row) (core.JournalEntry, error) {
		j := core.JournalEntry{Transaction: r["Transaction"], Category: r["Category"], ID: r.Get(colID)}
		var err error
		if j.Date, err = core.ParseDate(r.Get("Date")); err != nil {
			return j, err
		}
		if j.Amount, err = core.ParseMoney("amount", r.Get("Amount")); err != nil {
			return j, err
		}
		return j, nil
	},
}

// Rows returns the header followed by one encoded row per item.
func (c Codec[T]) Rows(items []T) [][]string {
	out := make([][]string, 0, len(items)+1)
	out = append(out, append([]string(nil), c.Header...))
	for _, it := range items {
		out = append(out, c.Encode(it))
	}
	return out
}

// WriteCSV writes items with a header line.
func (c Codec[T]) WriteCSV(w io.Writer, items []T) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(c.Rows(items)); err != nil {
		return fmt.Errorf("write %s: %w", c.Name, err)
	}
	return nil
}

// ReadCSV decodes a header-led table. Rows with a missing ID are returned
// with an empty ID; the second result reports whether any were seen.
// Blank lines are skipped. An empty input yields no rows.
func (c Codec[T]) ReadCSV(r io.Reader) ([]T, bool, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s header: %w", c.Name, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var (
		items     []T
		missingID bool
	)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("read %s line %d: %w", c.Name, line, err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		it, err := c.Decode(row)
		if err != nil {
			return nil, false, fmt.Errorf("%s line %d: %w", c.Name, line, err)
		}
		if c.ID(it) == "" {
			missingID = true
		}
		items = append(items, it)
	}
	return items, missingID, nil
}

// AssignIDs gives every row without an ID a fresh one.
func (c Codec[T]) AssignIDs(items []T) []T {
	for i, it := range items {
		if c.ID(it) == "" {
			items[i] = c.SetID(it, core.NewID())
		}
	}
	return items
}

// IndexOf returns the position of the row with id, or -1.
func (c Codec[T]) IndexOf(items []T, id string) int {
	for i, it := range items {
		if c.ID(it) == id {
			return i
		}
	}
	return -1
}
