package http

import (
	"bytes"
	"net/http"
	"strings"

	"finassist/internal/amqp"
	"finassist/internal/core"
)

type goalsPage struct {
	Title    string
	Today    core.Date
	Overview core.GoalsOverview
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.showGoals(w, r, "goals.html", nil)
	case http.MethodPost:
		s.createGoal(w, r)
	default:
		MethodNotAllowedError("GET, POST").Write(w)
	}
}

func (s *Server) showGoals(w http.ResponseWriter, r *http.Request, name string, b *HTMXResponseBuilder) {
	ov, err := s.svc.Goals.Overview(r.Context())
	if err != nil {
		s.fail(w, r, "Failed to load goals", err)
		return
	}
	if isHTMX(r) && name == "goals.html" {
		name = "goals-section"
	}
	s.render(w, r, name, goalsPage{Title: "Savings Goals", Today: s.today(), Overview: ov}, b)
}

func (s *Server) createGoal(w http.ResponseWriter, r *http.Request) {
	form, err := FormValues(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	g, err := ParseGoalForm(form)
	if err != nil {
		s.fail(w, r, "Invalid goal form", err)
		return
	}
	g, err = s.svc.Goals.Add(r.Context(), g, s.today())
	if err != nil {
		s.fail(w, r, "Failed to add goal", err)
		return
	}
	s.afterGoalWrite(w, r, amqp.OpInsert, g.ID, "Goal saved")
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		BadRequestError("Missing id").Write(w)
		return
	}
	form, err := FormValues(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	current, err := core.ParseMoney("current amount", form.Get("current"))
	if err != nil {
		s.fail(w, r, "Invalid goal update", err)
		return
	}
	if _, err := s.svc.Goals.UpdateCurrent(r.Context(), id, current); err != nil {
		s.fail(w, r, "Failed to update goal", err)
		return
	}
	s.afterGoalWrite(w, r, amqp.OpUpdate, id, "Goal updated")
}

func (s *Server) afterGoalWrite(w http.ResponseWriter, r *http.Request, op, id, message string) {
	if !isHTMX(r) {
		http.Redirect(w, r, "/goals", http.StatusSeeOther)
		return
	}
	s.showGoals(w, r, "goals-section", NewHTMXResponse().
		TriggerTableChanged(EventGoalsChanged, op, id).
		TriggerFormReset().
		TriggerSuccessNotification(message))
}

// handleSuggestContribution previews the monthly contribution while the
// goal form is being filled in. Incomplete input renders an empty hint.
func (s *Server) handleSuggestContribution(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := struct {
		Valid     bool
		Suggested core.Money
		Deadline  core.Date
	}{}
	target, errT := core.ParseMoney("target amount", q.Get("target"))
	deadline, errD := core.ParseDate(q.Get("deadline"))
	current := core.Money{}
	var errC error
	if v := strings.TrimSpace(q.Get("current")); v != "" {
		current, errC = core.ParseMoney("current amount", v)
	}
	if errT == nil && errD == nil && errC == nil {
		data.Valid = true
		data.Deadline = deadline
		data.Suggested = core.SuggestedMonthlyContribution(target, current, deadline, s.today())
	}
	s.render(w, r, "goal-suggestion", data, nil)
}

// handleExportGoals buffers the export so a failure is reported as an
// error page rather than a truncated download.
func (s *Server) handleExportGoals(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.Goals.ExportCSV(r.Context(), &buf); err != nil {
		s.fail(w, r, "Goal export failed", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="saving_goals.csv"`)
	_, _ = w.Write(buf.Bytes())
}
