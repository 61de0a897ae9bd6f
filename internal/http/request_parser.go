package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"finassist/internal/core"
)

const maxBodyBytes = 64 << 10

// FormValues reads a urlencoded or JSON body into url.Values so handlers
// accept both plain forms and json-encoded HTMX requests.
func FormValues(r *http.Request) (url.Values, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	values := url.Values{}
	trimmed := strings.TrimSpace(string(body))
	switch {
	case trimmed == "":
	case strings.HasPrefix(trimmed, "{"):
		var raw map[string]any
		if err := json.Unmarshal([]byte(trimmed), &raw); err != nil {
			return nil, err
		}
		for k, v := range raw {
			values.Set(k, stringValue(v))
		}
	default:
		if values, err = url.ParseQuery(trimmed); err != nil {
			return nil, err
		}
	}
	for k, vs := range values {
		for i := range vs {
			vs[i] = sanitizeInput(vs[i])
		}
		values[k] = vs
	}
	return values, nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims and drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
}

// RequireMethod returns a 405 response unless r uses one of methods.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// dateOr parses v, returning fallback when v is blank.
func dateOr(v string, fallback core.Date) (core.Date, error) {
	if strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	return core.ParseDate(v)
}

// ParseTransactionForm builds an income/expense row from form fields
// date, type, amount, frequency and description. A blank date means today.
func ParseTransactionForm(form url.Values, today core.Date) (core.Transaction, error) {
	var t core.Transaction
	var err error
	if t.Date, err = dateOr(form.Get("date"), today); err != nil {
		return t, err
	}
	if t.Kind, err = core.ParseKind(form.Get("type")); err != nil {
		return t, err
	}
	if t.Amount, err = core.ParseMoney("amount", form.Get("amount")); err != nil {
		return t, err
	}
	freq := form.Get("frequency")
	if freq == "" {
		freq = string(core.OneTime)
	}
	if t.Frequency, err = core.ParseFrequency(freq); err != nil {
		return t, err
	}
	t.Description = form.Get("description")
	return t, nil
}

// ParseGoalForm reads name, target, current, deadline and frequency.
func ParseGoalForm(form url.Values) (core.Goal, error) {
	g := core.Goal{Name: form.Get("name"), Frequency: core.OneTime}
	var err error
	if g.Target, err = core.ParseMoney("target amount", form.Get("target")); err != nil {
		return g, err
	}
	if v := form.Get("current"); v != "" {
		if g.Current, err = core.ParseMoney("current amount", v); err != nil {
			return g, err
		}
	}
	if g.Deadline, err = core.ParseDate(form.Get("deadline")); err != nil {
		return g, err
	}
	if v := form.Get("frequency"); v != "" {
		if g.Frequency, err = core.ParseFrequency(v); err != nil {
			return g, err
		}
	}
	return g, nil
}

// ParseJournalForm reads date, transaction, amount and category.
func ParseJournalForm(form url.Values, today core.Date) (core.JournalEntry, error) {
	e := core.JournalEntry{Transaction: form.Get("transaction"), Category: form.Get("category")}
	var err error
	if e.Date, err = dateOr(form.Get("date"), today); err != nil {
		return e, err
	}
	if e.Amount, err = core.ParseMoney("amount", form.Get("amount")); err != nil {
		return e, err
	}
	return e, nil
}

// ParseFilter reads the optional type and frequency query parameters.
// Blank values match everything; unknown values are an error.
func ParseFilter(q url.Values) (core.Kind, core.Frequency, error) {
	var kind core.Kind
	var freq core.Frequency
	var err error
	if v := q.Get("type"); v != "" {
		if kind, err = core.ParseKind(v); err != nil {
			return "", "", err
		}
	}
	if v := q.Get("frequency"); v != "" {
		if freq, err = core.ParseFrequency(v); err != nil {
			return "", "", err
		}
	}
	return kind, freq, nil
}
