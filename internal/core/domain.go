package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the on-disk and form representation of every date.
const DateLayout = "2006-01-02"

const (
	Income  Kind = "Income"
	Expense Kind = "Expense"
)

const (
	OneTime Frequency = "One-time"
	Daily   Frequency = "Daily"
	Weekly  Frequency = "Weekly"
	Monthly Frequency = "Monthly"
	Yearly  Frequency = "Yearly"
)

// DefaultGoalName is used when a goal is submitted without a name.
const DefaultGoalName = "Unknown"

type (
	Kind      string
	Frequency string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is one row of the income/expense table. For recurring
	// records Date is the last materialized occurrence. Back-filled
	// occurrences keep the series frequency and point at it through ParentID.
	Transaction struct {
		ID          string
		Date        Date
		Kind        Kind
		Amount      Money
		Frequency   Frequency
		Description string
		ParentID    string
	}

	// Goal is one row of the savings-goal table.
	Goal struct {
		ID                  string
		Name                string
		Target              Money
		Current             Money
		Deadline            Date
		MonthlyContribution Money
		Frequency           Frequency
	}

	// JournalEntry is one row of the ad-hoc transactions table.
	JournalEntry struct {
		ID          string
		Date        Date
		Transaction string
		Amount      Money
		Category    string
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidKind        = errors.New("invalid type")
	ErrInvalidFrequency   = errors.New("invalid frequency")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrNotFound           = errors.New("record not found")
)

const maxTextLen = 200

var (
	Kinds           = []Kind{Income, Expense}
	Frequencies     = []Frequency{OneTime, Daily, Weekly, Monthly, Yearly}
	GoalFrequencies = []Frequency{OneTime, Monthly, Yearly}
)

// ParseError reports a table value that could not be interpreted.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError reports a persisted table that could not be read or written.
// The cause may be a *ParseError when the stored data itself is malformed;
// it is still a server-side failure.
type StorageError struct {
	Table string
	Op    string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewID returns a fresh row identifier.
func NewID() string {
	return uuid.New().String()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current calendar day in local time.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD value. Timestamps carrying a time part
// after the date are accepted and truncated.
func ParseDate(s string) (Date, error) {
	v := strings.TrimSpace(s)
	if len(v) > len(DateLayout) && (v[len(DateLayout)] == ' ' || v[len(DateLayout)] == 'T') {
		v = v[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return Date{}, &ParseError{Field: "date", Value: s, Err: ErrInvalidDate}
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n calendar days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.AddDate(0, 0, n)}
}

// DaysUntil returns the whole days from d to other; negative when other is
// earlier. Dates are UTC midnights, so the count is exact for any span.
func (d Date) DaysUntil(other Date) int {
	return int((other.Unix() - d.Unix()) / secondsPerDay)
}

const secondsPerDay = 24 * 60 * 60

// Years accepted on entered dates.
const (
	MinYear = 1900
	MaxYear = 9999
)

// Validate rejects the zero date and years outside MinYear..MaxYear.
func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	if y := d.Year(); y < MinYear || y > MaxYear {
		return ErrInvalidDate
	}
	return nil
}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(strings.TrimSpace(s), string(k)) {
			return k, nil
		}
	}
	return "", &ParseError{Field: "type", Value: s, Err: ErrInvalidKind}
}

func ParseFrequency(s string) (Frequency, error) {
	v := strings.TrimSpace(s)
	for _, f := range Frequencies {
		if strings.EqualFold(v, string(f)) {
			return f, nil
		}
	}
	// Older tables wrote the one-time value without a hyphen.
	if strings.EqualFold(v, "onetime") || strings.EqualFold(v, "one time") {
		return OneTime, nil
	}
	return "", &ParseError{Field: "frequency", Value: s, Err: ErrInvalidFrequency}
}

// Recurring reports whether records with this frequency are back-filled.
func (f Frequency) Recurring() bool {
	return f != OneTime
}

// SeriesHead reports whether t drives back-fill: a recurring record that
// was entered by hand rather than materialized from another one. Earlier
// versions of the tracker also re-expanded materialized copies.
func (t Transaction) SeriesHead() bool {
	return t.Frequency.Recurring() && t.ParentID == ""
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	switch t.Kind {
	case Income, Expense:
	default:
		return ErrInvalidKind
	}
	switch t.Frequency {
	case OneTime, Daily, Weekly, Monthly, Yearly:
	default:
		return ErrInvalidFrequency
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if len(t.Description) > maxTextLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (g Goal) Validate() error {
	if err := g.Deadline.Validate(); err != nil {
		return fmt.Errorf("deadline: %w", err)
	}
	if err := g.Target.Validate(); err != nil {
		return fmt.Errorf("target: %w", err)
	}
	if err := g.Current.Validate(); err != nil {
		return fmt.Errorf("current: %w", err)
	}
	switch g.Frequency {
	case OneTime, Monthly, Yearly:
	default:
		return ErrInvalidFrequency
	}
	if len(g.Name) > maxTextLen {
		return ErrDescriptionTooLong
	}
	return nil
}

func (j JournalEntry) Validate() error {
	if err := j.Date.Validate(); err != nil {
		return err
	}
	if err := j.Amount.Validate(); err != nil {
		return err
	}
	if len(j.Transaction) > maxTextLen || len(j.Category) > maxTextLen {
		return ErrDescriptionTooLong
	}
	return nil
}
