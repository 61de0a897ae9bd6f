package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"finassist/internal/core"
	"finassist/internal/services"
	"finassist/internal/sheets"
	"finassist/internal/sheets/memory"
)

var fixedNow = time.Date(2024, 1, 4, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	srv   *Server
	tx    *services.TransactionService
	goals *services.GoalService
}

func newTestServer(t *testing.T, seed ...core.Transaction) testEnv {
	t.Helper()
	return newTestServerWith(t, memory.NewTransactions(seed...), memory.NewGoals())
}

func newTestServerWith(t *testing.T, txTable sheets.TransactionTable, goalTable sheets.GoalTable) testEnv {
	t.Helper()
	exp, err := services.NewExpander(services.ModeDayWalk)
	if err != nil {
		t.Fatalf("NewExpander: %v", err)
	}
	tx := services.NewTransactionService(txTable, exp, nil, 8)
	goals := services.NewGoalService(goalTable, tx, nil)
	journal := services.NewJournalService(memory.NewJournal(), nil)
	srv, err := NewServer(":0", Services{Transactions: tx, Goals: goals, Journal: journal}, Options{
		RateLimitPerMinute: 1000,
		Now:                func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return testEnv{srv: srv, tx: tx, goals: goals}
}

func (e testEnv) do(method, target string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestIndexAndHealth(t *testing.T) {
	env := newTestServer(t)

	rr := env.do(http.MethodGet, "/", nil, false)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Personal Finance Assistant") {
		t.Fatalf("index status=%d body=%q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" || rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("middleware headers missing: %v", rr.Header())
	}
	for _, path := range []string{"/healthz", "/readyz", "/static/style.css"} {
		if rr := env.do(http.MethodGet, path, nil, false); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
	if rr := env.do(http.MethodGet, "/nope", nil, false); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestReadyzReportsStorageFailure(t *testing.T) {
	env := newTestServer(t)
	env.srv.svc.Ready = func(context.Context) error { return errors.New("db gone") }
	if rr := env.do(http.MethodGet, "/readyz", nil, false); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz status=%d", rr.Code)
	}
}

func TestIncomeExpensesCatchUpOnView(t *testing.T) {
	env := newTestServer(t, core.Transaction{
		ID: "rent", Date: core.NewDate(2024, 1, 1), Kind: core.Expense,
		Amount: core.Money{Cents: 1000}, Frequency: core.Daily, Description: "rent",
	})

	rr := env.do(http.MethodGet, "/income-expenses", nil, false)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Back-filled 3 recurring entries") {
		t.Fatalf("catch-up notice missing: %s", body)
	}
	if !strings.Contains(body, "-$40.00") {
		t.Fatalf("balance missing: %s", body)
	}

	rr = env.do(http.MethodGet, "/income-expenses", nil, false)
	if strings.Contains(rr.Body.String(), "Back-filled") {
		t.Fatal("second view should not back-fill again")
	}
}

func TestCreateTransaction(t *testing.T) {
	env := newTestServer(t)

	form := url.Values{"type": {"Income"}, "amount": {"1500.50"}, "frequency": {"One-time"}, "description": {"bonus"}}
	rr := env.do(http.MethodPost, "/income-expenses", form, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{EventTransactionsChanged, EventFormReset, `"type":"success"`} {
		if !strings.Contains(trigger, want) {
			t.Fatalf("HX-Trigger missing %s: %s", want, trigger)
		}
	}
	if !strings.Contains(rr.Body.String(), "$1500.50") || !strings.Contains(rr.Body.String(), `id="tx-section"`) {
		t.Fatalf("partial missing new entry: %s", rr.Body.String())
	}

	rows, _ := env.tx.List(context.Background(), "", "")
	if len(rows) != 1 || rows[0].Date != core.NewDate(2024, 1, 4) {
		t.Fatalf("blank date should default to today: %+v", rows)
	}

	rr = env.do(http.MethodPost, "/income-expenses", form, false)
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/income-expenses" {
		t.Fatalf("plain post should redirect, got %d", rr.Code)
	}
}

func TestCreateTransactionErrors(t *testing.T) {
	env := newTestServer(t)
	cases := []struct {
		name string
		form url.Values
		want int
	}{
		{"bad amount", url.Values{"type": {"Income"}, "amount": {"abc"}}, http.StatusBadRequest},
		{"bad date", url.Values{"type": {"Income"}, "amount": {"1"}, "date": {"04/01/2024"}}, http.StatusBadRequest},
		{"bad kind", url.Values{"type": {"Gift"}, "amount": {"1"}}, http.StatusBadRequest},
		{"negative amount", url.Values{"type": {"Expense"}, "amount": {"-5"}}, http.StatusUnprocessableEntity},
		{"long description", url.Values{"type": {"Expense"}, "amount": {"5"}, "description": {strings.Repeat("x", 201)}}, http.StatusUnprocessableEntity},
		{"date before 1900", url.Values{"type": {"Income"}, "amount": {"1"}, "date": {"0001-01-01"}, "frequency": {"Yearly"}}, http.StatusUnprocessableEntity},
		{"year past 9999", url.Values{"type": {"Income"}, "amount": {"1"}, "date": {"10000-01-01"}}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := env.do(http.MethodPost, "/income-expenses", tc.form, true)
			if rr.Code != tc.want {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tc.want, rr.Body.String())
			}
		})
	}
	if rows, _ := env.tx.List(context.Background(), "", ""); len(rows) != 0 {
		t.Fatalf("rejected posts were stored: %+v", rows)
	}
	if rr := env.do(http.MethodPut, "/income-expenses", nil, false); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT status=%d", rr.Code)
	}
}

func TestDeleteTransaction(t *testing.T) {
	env := newTestServer(t, core.Transaction{
		ID: "t1", Date: core.NewDate(2024, 1, 2), Kind: core.Income,
		Amount: core.Money{Cents: 100}, Frequency: core.OneTime,
	})
	if rr := env.do(http.MethodPost, "/income-expenses/delete?id=t1", nil, true); rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := env.do(http.MethodPost, "/income-expenses/delete?id=t1", nil, true); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
	if rr := env.do(http.MethodPost, "/income-expenses/delete", nil, true); rr.Code != http.StatusBadRequest {
		t.Fatalf("missing id status=%d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/income-expenses/delete?id=t1", nil, false); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET delete status=%d", rr.Code)
	}
}

func TestFilteredView(t *testing.T) {
	env := newTestServer(t,
		core.Transaction{ID: "a", Date: core.NewDate(2024, 1, 4), Kind: core.Income, Amount: core.Money{Cents: 111}, Frequency: core.OneTime, Description: "alpha"},
		core.Transaction{ID: "b", Date: core.NewDate(2024, 1, 4), Kind: core.Expense, Amount: core.Money{Cents: 222}, Frequency: core.OneTime, Description: "beta"},
	)
	rr := env.do(http.MethodGet, "/income-expenses?type=Expense", nil, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	filtered := rr.Body.String()[strings.Index(rr.Body.String(), "Filtered view"):]
	if strings.Contains(filtered, "alpha") || !strings.Contains(filtered, "beta") {
		t.Fatalf("filter not applied: %s", filtered)
	}
	if rr := env.do(http.MethodGet, "/income-expenses?frequency=Hourly", nil, false); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad filter status=%d", rr.Code)
	}
}

func TestGoalsFlow(t *testing.T) {
	env := newTestServer(t, core.Transaction{
		ID: "inc", Date: core.NewDate(2024, 1, 4), Kind: core.Income,
		Amount: core.Money{Cents: 300000}, Frequency: core.OneTime,
	})

	form := url.Values{"name": {"Car"}, "target": {"2000"}, "current": {"500"}, "deadline": {"2024-04-03"}, "frequency": {"Monthly"}}
	rr := env.do(http.MethodPost, "/goals", form, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	// 90 days -> 3 months -> (2000-500)/3.
	if !strings.Contains(body, "$500.00") || !strings.Contains(body, "25.0%") {
		t.Fatalf("goal card wrong: %s", body)
	}
	if !strings.Contains(body, "Your balance already covers this goal") {
		t.Fatalf("balance notice missing: %s", body)
	}

	goals, _ := env.goals.List(context.Background())
	if len(goals) != 1 {
		t.Fatalf("expected 1 goal, got %d", len(goals))
	}
	rr = env.do(http.MethodPost, "/goals/update?id="+goals[0].ID, url.Values{"current": {"2000"}}, true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Goal reached!") {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := env.do(http.MethodPost, "/goals/update?id=missing", url.Values{"current": {"1"}}, true); rr.Code != http.StatusNotFound {
		t.Fatalf("missing goal status=%d", rr.Code)
	}

	rr = env.do(http.MethodGet, "/goals/export.csv", nil, false)
	if rr.Code != http.StatusOK || !strings.HasPrefix(rr.Body.String(), "Goal,Target Amount,Current Amount,Deadline,Monthly Contribution,Frequency") {
		t.Fatalf("export status=%d body=%q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "saving_goals.csv") {
		t.Fatalf("missing attachment header")
	}
}

func TestBlankGoalNameAndZeroTarget(t *testing.T) {
	env := newTestServer(t)
	form := url.Values{"target": {"0"}, "deadline": {"2024-02-01"}}
	rr := env.do(http.MethodPost, "/goals", form, true)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), core.DefaultGoalName) || !strings.Contains(rr.Body.String(), "0.0%") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestSuggestContribution(t *testing.T) {
	env := newTestServer(t)
	rr := env.do(http.MethodGet, "/goals/suggest?target=1200&current=0&deadline=2025-01-04", nil, true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Suggested monthly contribution") {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	rr = env.do(http.MethodGet, "/goals/suggest?target=abc", nil, true)
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "" {
		t.Fatalf("incomplete input should render nothing: %q", rr.Body.String())
	}
}

func TestJournal(t *testing.T) {
	env := newTestServer(t)
	form := url.Values{"transaction": {"coffee"}, "amount": {"3.50"}, "category": {"food"}}
	rr := env.do(http.MethodPost, "/transactions", form, true)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "coffee") {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), EventJournalChanged) {
		t.Fatalf("journal trigger missing")
	}
	rr = env.do(http.MethodGet, "/transactions", nil, false)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "$3.50") {
		t.Fatalf("page status=%d", rr.Code)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	exp, _ := services.NewExpander(services.ModeDayWalk)
	tx := services.NewTransactionService(memory.NewTransactions(), exp, nil, 8)
	srv, err := NewServer(":0", Services{
		Transactions: tx,
		Goals:        services.NewGoalService(memory.NewGoals(), tx, nil),
		Journal:      services.NewJournalService(memory.NewJournal(), nil),
	}, Options{RateLimitPerMinute: 1, Now: func() time.Time { return fixedNow }})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	defer srv.Shutdown(context.Background())
	env := testEnv{srv: srv}

	form := url.Values{"transaction": {"x"}, "amount": {"1"}}
	if rr := env.do(http.MethodPost, "/transactions", form, true); rr.Code != http.StatusOK {
		t.Fatalf("first post status=%d", rr.Code)
	}
	if rr := env.do(http.MethodPost, "/transactions", form, true); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second post status=%d", rr.Code)
	}
	if rr := env.do(http.MethodGet, "/transactions", nil, false); rr.Code != http.StatusOK {
		t.Fatalf("reads must not be limited, status=%d", rr.Code)
	}
}

// corruptGoals behaves like a goal table whose stored rows no longer parse.
type corruptGoals struct {
	*memory.Table[core.Goal]
}

func (corruptGoals) Load(context.Context) ([]core.Goal, error) {
	return nil, &core.ParseError{Field: "deadline", Value: "someday", Err: core.ErrInvalidDate}
}

func TestCorruptStoredTableIsServerError(t *testing.T) {
	env := newTestServerWith(t, memory.NewTransactions(), corruptGoals{memory.NewGoals()})

	for _, path := range []string{"/goals", "/goals/export.csv"} {
		rr := env.do(http.MethodGet, path, nil, false)
		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("%s status=%d want 500", path, rr.Code)
		}
		if strings.Contains(rr.Body.String(), "someday") {
			t.Fatalf("%s leaked stored value: %s", path, rr.Body.String())
		}
	}
}

func TestFailedExportSendsNoAttachment(t *testing.T) {
	env := newTestServerWith(t, memory.NewTransactions(), corruptGoals{memory.NewGoals()})

	rr := env.do(http.MethodGet, "/goals/export.csv", nil, false)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != "" {
		t.Fatalf("failed export still offered a download: %q", cd)
	}
	if ct := rr.Header().Get("Content-Type"); strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("failed export has content type %q", ct)
	}
}
