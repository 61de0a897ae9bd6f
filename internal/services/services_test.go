package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"finassist/internal/amqp"
	"finassist/internal/core"
	"finassist/internal/sheets"
	"finassist/internal/sheets/csvfile"
	"finassist/internal/sheets/memory"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*amqp.TableChangedMessage
	err  error
}

func (p *recordingPublisher) PublishTableChanged(_ context.Context, msg *amqp.TableChangedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *recordingPublisher) ops() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.msgs {
		out = append(out, m.Table+":"+m.Operation)
	}
	return out
}

func newTransactionService(t *testing.T, pub ChangePublisher, seed ...core.Transaction) *TransactionService {
	t.Helper()
	exp, err := NewExpander(ModeDayWalk)
	if err != nil {
		t.Fatalf("NewExpander: %v", err)
	}
	return NewTransactionService(memory.NewTransactions(seed...), exp, pub, 8)
}

func TestTransactionServiceCatchUp(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newTransactionService(t, pub, core.Transaction{
		ID: "rent", Date: core.NewDate(2024, 1, 1), Kind: core.Expense,
		Amount: core.Money{Cents: 1000}, Frequency: core.Daily, Description: "rent",
	})

	added, err := svc.CatchUp(ctx, core.NewDate(2024, 1, 4))
	if err != nil {
		t.Fatalf("CatchUp: %v", err)
	}
	if added != 3 {
		t.Fatalf("added = %d, want 3", added)
	}
	rows, _ := svc.List(ctx, "", "")
	if len(rows) != 4 || rows[0].Date != core.NewDate(2024, 1, 4) {
		t.Fatalf("unexpected rows: %+v", rows)
	}

	added, err = svc.CatchUp(ctx, core.NewDate(2024, 1, 4))
	if err != nil || added != 0 {
		t.Fatalf("second pass added=%d err=%v", added, err)
	}
	if got := pub.ops(); len(got) != 1 || got[0] != sheets.TableTransactions+":"+amqp.OpBackfill {
		t.Fatalf("unexpected events: %v", got)
	}
	if pub.msgs[0].Count != 3 {
		t.Fatalf("backfill count = %d, want 3", pub.msgs[0].Count)
	}
}

func TestTransactionServiceAddDeleteSummary(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTransactionService(t, pub)

	income, err := svc.Add(ctx, core.Transaction{Date: core.NewDate(2024, 2, 1), Kind: core.Income, Amount: core.Money{Cents: 5000}, Frequency: core.OneTime})
	if err != nil {
		t.Fatalf("Add income: %v", err)
	}
	if income.ID == "" {
		t.Fatal("Add should assign an ID")
	}
	sum, err := svc.Summary(ctx, "", "")
	if err != nil || sum.Balance.Cents != 5000 {
		t.Fatalf("summary=%+v err=%v", sum, err)
	}

	if _, err := svc.Add(ctx, core.Transaction{Date: core.NewDate(2024, 2, 2), Kind: core.Expense, Amount: core.Money{Cents: 1500}, Frequency: core.Monthly}); err != nil {
		t.Fatalf("Add expense: %v", err)
	}
	sum, _ = svc.Summary(ctx, "", "")
	if sum.Income.Cents != 5000 || sum.Expense.Cents != 1500 || sum.Balance.Cents != 3500 {
		t.Fatalf("stale summary after write: %+v", sum)
	}
	expenses, _ := svc.Summary(ctx, core.Expense, core.Monthly)
	if expenses.Income.Cents != 0 || expenses.Expense.Cents != 1500 {
		t.Fatalf("filtered summary: %+v", expenses)
	}

	if err := svc.Delete(ctx, income.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := svc.Delete(ctx, income.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	bal, _ := svc.Balance(ctx)
	if bal.Cents != -1500 {
		t.Fatalf("balance = %d, want -1500", bal.Cents)
	}
	if len(pub.ops()) != 3 {
		t.Fatalf("expected 3 publish attempts, got %v", pub.ops())
	}
}

func TestTransactionServiceRejectsInvalid(t *testing.T) {
	svc := newTransactionService(t, nil)
	_, err := svc.Add(context.Background(), core.Transaction{Date: core.NewDate(2024, 1, 1), Kind: core.Income, Amount: core.Money{Cents: -1}, Frequency: core.OneTime})
	if !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransactionServiceRejectsOutOfRangeDates(t *testing.T) {
	svc := newTransactionService(t, nil)
	for _, d := range []core.Date{core.NewDate(1, 1, 1), core.NewDate(1899, 12, 31)} {
		_, err := svc.Add(context.Background(), core.Transaction{Date: d, Kind: core.Income, Amount: core.Money{Cents: 1}, Frequency: core.Yearly})
		if !errors.Is(err, core.ErrInvalidDate) {
			t.Fatalf("%s: expected ErrInvalidDate, got %v", d, err)
		}
	}
	rows, _ := svc.List(context.Background(), "", "")
	if len(rows) != 0 {
		t.Fatalf("rejected rows were stored: %+v", rows)
	}
}

// countingTable counts loads so tests can tell cached summaries apart.
type countingTable struct {
	*memory.Table[core.Transaction]
	mu    sync.Mutex
	loads int
}

func (c *countingTable) Load(ctx context.Context) ([]core.Transaction, error) {
	c.mu.Lock()
	c.loads++
	c.mu.Unlock()
	return c.Table.Load(ctx)
}

func (c *countingTable) loadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

func TestSummaryCachedUntilTableChanges(t *testing.T) {
	ctx := context.Background()
	table := &countingTable{Table: memory.NewTransactions(core.Transaction{
		ID: "a", Date: core.NewDate(2024, 1, 1), Kind: core.Income, Amount: core.Money{Cents: 700}, Frequency: core.OneTime,
	})}
	exp, _ := NewExpander(ModeDayWalk)
	svc := NewTransactionService(table, exp, nil, 8)

	for i := 0; i < 3; i++ {
		if bal, err := svc.Balance(ctx); err != nil || bal.Cents != 700 {
			t.Fatalf("balance=%v err=%v", bal, err)
		}
	}
	if n := table.loadCount(); n != 1 {
		t.Fatalf("expected one load for repeated summaries, got %d", n)
	}

	// Written behind the service's back, as another process would.
	if err := table.Upsert(ctx, core.Transaction{ID: "b", Date: core.NewDate(2024, 1, 2), Kind: core.Expense, Amount: core.Money{Cents: 200}, Frequency: core.OneTime}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if bal, _ := svc.Balance(ctx); bal.Cents != 500 {
		t.Fatalf("balance after external write = %d, want 500", bal.Cents)
	}
}

func TestSummarySeesBackfillFromAnotherProcess(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	open := func() *TransactionService {
		tables, err := csvfile.Open(dir)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		exp, _ := NewExpander(ModeDayWalk)
		return NewTransactionService(tables.Transactions, exp, nil, 8)
	}
	server, worker := open(), open()

	if _, err := server.Add(ctx, core.Transaction{Date: core.NewDate(2024, 1, 1), Kind: core.Expense, Amount: core.Money{Cents: 1000}, Frequency: core.Daily}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if sum, _ := server.Summary(ctx, "", ""); sum.Expense.Cents != 1000 {
		t.Fatalf("initial expense = %d", sum.Expense.Cents)
	}

	today := core.NewDate(2024, 1, 4)
	if added, err := worker.CatchUp(ctx, today); err != nil || added != 3 {
		t.Fatalf("worker CatchUp added=%d err=%v", added, err)
	}
	if added, err := server.CatchUp(ctx, today); err != nil || added != 0 {
		t.Fatalf("server CatchUp added=%d err=%v", added, err)
	}
	rows, _ := server.List(ctx, "", "")
	sum, err := server.Summary(ctx, "", "")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if len(rows) != 4 || sum.Expense.Cents != 4000 || sum.Balance.Cents != -4000 {
		t.Fatalf("rows=%d summary=%+v, want 4 rows and $40.00 expenses", len(rows), sum)
	}
}

// brokenTable fails every load with a malformed stored value.
type brokenTable struct {
	*memory.Table[core.Transaction]
}

func (brokenTable) Load(context.Context) ([]core.Transaction, error) {
	return nil, &core.ParseError{Field: "date", Value: "31/12/2023", Err: core.ErrInvalidDate}
}

func TestLoadFailuresAreStorageErrors(t *testing.T) {
	ctx := context.Background()
	exp, _ := NewExpander(ModeDayWalk)
	svc := NewTransactionService(brokenTable{memory.NewTransactions()}, exp, nil, 8)

	_, err := svc.CatchUp(ctx, core.NewDate(2024, 1, 1))
	var se *core.StorageError
	if !errors.As(err, &se) || se.Table != sheets.TableTransactions {
		t.Fatalf("CatchUp: expected StorageError, got %v", err)
	}
	if _, err := svc.Summary(ctx, "", ""); !errors.As(err, &se) {
		t.Fatalf("Summary: expected StorageError, got %v", err)
	}
	if _, err := svc.List(ctx, "", ""); !errors.As(err, &se) {
		t.Fatalf("List: expected StorageError, got %v", err)
	}
}

type fixedBalance int64

func (b fixedBalance) Balance(context.Context) (core.Money, error) {
	return core.Money{Cents: int64(b)}, nil
}

func TestGoalServiceAddAndOverview(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := NewGoalService(memory.NewGoals(), fixedBalance(60000), pub)
	today := core.NewDate(2024, 1, 1)

	g, err := svc.Add(ctx, core.Goal{
		Name: "  ", Target: core.Money{Cents: 100000}, Current: core.Money{Cents: 40000},
		Deadline: today.AddDays(90), Frequency: core.Monthly,
	}, today)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if g.Name != core.DefaultGoalName {
		t.Fatalf("name = %q", g.Name)
	}
	if g.MonthlyContribution.Cents != 20000 {
		t.Fatalf("monthly contribution = %d, want 20000", g.MonthlyContribution.Cents)
	}

	if _, err := svc.UpdateCurrent(ctx, g.ID, core.Money{Cents: 100000}); err != nil {
		t.Fatalf("UpdateCurrent: %v", err)
	}
	if _, err := svc.UpdateCurrent(ctx, "missing", core.Money{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	ov, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(ov.Goals) != 1 || !ov.Goals[0].Reached || ov.Goals[0].BalanceMeetsTarget || ov.OverallProgress != 1 {
		t.Fatalf("unexpected overview: %+v", ov)
	}
	if ov.Balance.Cents != 60000 {
		t.Fatalf("balance = %d", ov.Balance.Cents)
	}
	want := []string{sheets.TableGoals + ":" + amqp.OpInsert, sheets.TableGoals + ":" + amqp.OpUpdate}
	if got := pub.ops(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestGoalServiceExportCSV(t *testing.T) {
	ctx := context.Background()
	svc := NewGoalService(memory.NewGoals(core.Goal{
		ID: "g1", Name: "Car", Target: core.Money{Cents: 500000}, Current: core.Money{Cents: 1000},
		Deadline: core.NewDate(2025, 6, 1), MonthlyContribution: core.Money{Cents: 31250}, Frequency: core.Monthly,
	}), fixedBalance(0), nil)

	var buf bytes.Buffer
	if err := svc.ExportCSV(ctx, &buf); err != nil {
		t.Fatalf("ExportCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "Goal,Target Amount,Current Amount,Deadline,Monthly Contribution,Frequency") {
		t.Fatalf("unexpected export: %q", buf.String())
	}
	if !strings.HasPrefix(lines[1], "Car,5000.00,10.00,2025-06-01,312.50,Monthly") {
		t.Fatalf("unexpected row: %q", lines[1])
	}
}

func TestJournalServiceAdd(t *testing.T) {
	ctx := context.Background()
	svc := NewJournalService(memory.NewJournal(), nil)
	e, err := svc.Add(ctx, core.JournalEntry{Date: core.NewDate(2024, 3, 3), Transaction: " coffee ", Amount: core.Money{Cents: 350}, Category: "food"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if e.ID == "" || e.Transaction != "coffee" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	entries, _ := svc.List(ctx)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if _, err := svc.Add(ctx, core.JournalEntry{Transaction: "no date", Amount: core.Money{Cents: 1}}); !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestRecurringProcessor(t *testing.T) {
	svc := newTransactionService(t, nil, core.Transaction{
		ID: "w", Date: core.NewDate(2024, 1, 1), Kind: core.Income,
		Amount: core.Money{Cents: 100}, Frequency: core.Weekly,
	})
	p := NewRecurringProcessor(svc)
	added, err := p.Process(context.Background(), time.Date(2024, 1, 16, 9, 30, 0, 0, time.Local))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	// 15 days floor to 14 day-units.
	if added != 14 {
		t.Fatalf("added = %d, want 14", added)
	}
	if _, err := NewRecurringProcessor(nil).Process(context.Background(), time.Now()); err == nil {
		t.Fatal("expected error for uninitialized processor")
	}
}
