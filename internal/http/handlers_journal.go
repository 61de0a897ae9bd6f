package http

import (
	"net/http"

	"finassist/internal/amqp"
	"finassist/internal/core"
)

type journalPage struct {
	Title   string
	Today   core.Date
	Entries []core.JournalEntry
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.showJournal(w, r, nil)
	case http.MethodPost:
		s.createJournalEntry(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) showJournal(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder) {
	entries, err := s.svc.Journal.List(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to load transactions", err)
		return
	}
	name := "transactions.html"
	if isHTMX(r) {
		name = "journal-section"
	}
	s.render(w, r, name, journalPage{Title: "Transactions", Today: s.today(), Entries: entries}, b)
}

func (s *Server) createJournalEntry(w http.ResponseWriter, r *http.Request) {
	form, err := FormValues(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	e, err := ParseJournalForm(form, s.today())
	if err != nil {
		s.fail(w, r, "Invalid transaction form", err)
		return
	}
	e, err = s.svc.Journal.Add(r.Context(), e)
	if err != nil {
		s.fail(w, r, "Failed to add transaction", err)
		return
	}
	if !isHTMX(r) {
		http.Redirect(w, r, "/transactions", http.StatusSeeOther)
		return
	}
	s.showJournal(w, r, NewHTMXResponse().
		TriggerTableChanged(EventJournalChanged, amqp.OpInsert, e.ID).
		TriggerFormReset().
		TriggerSuccessNotification("Transaction added"))
}
