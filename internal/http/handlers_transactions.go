package http

import (
	"net/http"

	"finassist/internal/amqp"
	"finassist/internal/core"
	applog "finassist/internal/log"
)

type incomeExpensesPage struct {
	Title      string
	Today      core.Date
	Added      int
	Totals     core.Totals
	Records    []core.Transaction
	Filtered   []core.Transaction
	FilterKind core.Kind
	FilterFreq core.Frequency
}

// handleIncomeExpenses serves GET (catch-up pass, then the page) and POST
// (add one entry).
func (s *Server) handleIncomeExpenses(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.showIncomeExpenses(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) showIncomeExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	kind, freq, err := ParseFilter(r.URL.Query())
	if err != nil {
		s.fail(w, r, "Invalid filter", err)
		return
	}

	added, err := s.svc.Transactions.CatchUp(ctx, s.today())
	if err != nil {
		s.fail(w, r, "Recurring catch-up failed", err)
		return
	}
	page, err := s.incomeExpensesPage(r, kind, freq)
	if err != nil {
		s.fail(w, r, "Failed to load income and expenses", err)
		return
	}
	page.Added = added

	name := "income_expenses.html"
	if isHTMX(r) {
		name = "tx-section"
	}
	s.render(w, r, name, page, nil)
}

func (s *Server) incomeExpensesPage(r *http.Request, kind core.Kind, freq core.Frequency) (incomeExpensesPage, error) {
	ctx := r.Context()
	all, err := s.svc.Transactions.List(ctx, "", "")
	if err != nil {
		return incomeExpensesPage{}, err
	}
	totals, err := s.svc.Transactions.Summary(ctx, "", "")
	if err != nil {
		return incomeExpensesPage{}, err
	}
	return incomeExpensesPage{
		Title:      "Income & Expenses",
		Today:      s.today(),
		Totals:     totals,
		Records:    all,
		Filtered:   core.Filter(all, kind, freq),
		FilterKind: kind,
		FilterFreq: freq,
	}, nil
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	form, err := FormValues(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	t, err := ParseTransactionForm(form, s.today())
	if err != nil {
		s.fail(w, r, "Invalid transaction form", err)
		return
	}
	t, err = s.svc.Transactions.Add(r.Context(), t)
	if err != nil {
		s.fail(w, r, "Failed to add transaction", err)
		return
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created", applog.NewFields().WithTransaction(t).Args()...)
	s.afterTransactionWrite(w, r, amqp.OpInsert, t.ID, "Entry added")
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequireMethod(r, http.MethodPost, http.MethodDelete); resp != nil {
		resp.Write(w)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		BadRequestError("Missing id").Write(w)
		return
	}
	if err := s.svc.Transactions.Delete(r.Context(), id); err != nil {
		s.fail(w, r, "Failed to delete transaction", err)
		return
	}
	s.afterTransactionWrite(w, r, amqp.OpDelete, id, "Entry deleted")
}

// afterTransactionWrite re-renders the section for HTMX callers and
// redirects plain form posts back to the page.
func (s *Server) afterTransactionWrite(w http.ResponseWriter, r *http.Request, op, id, message string) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/income-expenses", http.StatusSeeOther)
		return
	}
	page, err := s.incomeExpensesPage(r, "", "")
	if err != nil {
		s.fail(w, r, "Failed to reload income and expenses", err)
		return
	}
	s.render(w, r, "tx-section", page, NewHTMXResponse().
		TriggerTableChanged(EventTransactionsChanged, op, id).
		TriggerFormReset().
		TriggerSuccessNotification(message))
}
