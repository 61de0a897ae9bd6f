// Package services provides business logic and orchestration services.
//
// This file implements recurring back-fill. Each frequency has its own
// occurrence strategy; two registries exist, one walking day by day over an
// approximated day count and one stepping by calendar units.
package services

import (
	"fmt"
	"strings"

	"finassist/internal/core"
)

// StepMode selects how missed occurrences are laid out.
type StepMode string

const (
	// ModeDayWalk converts the elapsed interval into a day count (months
	// as 30 days, years as 365) and materializes one record per day.
	ModeDayWalk StepMode = "daywalk"
	// ModeCalendar materializes one record per elapsed calendar unit.
	ModeCalendar StepMode = "calendar"
)

func ParseStepMode(s string) (StepMode, error) {
	switch StepMode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeDayWalk, "":
		return ModeDayWalk, nil
	case ModeCalendar:
		return ModeCalendar, nil
	}
	return "", fmt.Errorf("unknown recurring mode: %s", s)
}

// OccurrenceStrategy computes the dates to materialize for a series whose
// last stored date is last, caught up to today. An empty result means the
// series is already current.
type OccurrenceStrategy interface {
	Occurrences(last, today core.Date) []core.Date
}

// DailyElapsedDays counts whole days from last to today.
func DailyElapsedDays(last, today core.Date) int {
	return last.DaysUntil(today)
}

// WeeklyElapsedDays floors the elapsed days to a multiple of seven.
func WeeklyElapsedDays(last, today core.Date) int {
	return (last.DaysUntil(today) / 7) * 7
}

// MonthlyElapsedDays counts calendar months and converts them at 30 days each.
func MonthlyElapsedDays(last, today core.Date) int {
	months := (today.Year()-last.Year())*12 + int(today.Month()) - int(last.Month())
	return months * 30
}

// YearlyElapsedDays counts calendar years and converts them at 365 days each.
func YearlyElapsedDays(last, today core.Date) int {
	return (today.Year() - last.Year()) * 365
}

// DayWalk materializes one occurrence per elapsed day-unit.
type DayWalk struct {
	ElapsedDays func(last, today core.Date) int
}

func (s DayWalk) Occurrences(last, today core.Date) []core.Date {
	n := s.ElapsedDays(last, today)
	if n <= 0 {
		return nil
	}
	out := make([]core.Date, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, last.AddDays(i))
	}
	return out
}

// CalendarStep materializes the k-th step after last for every step that
// does not pass today.
type CalendarStep struct {
	Step func(last core.Date, k int) core.Date
}

func (s CalendarStep) Occurrences(last, today core.Date) []core.Date {
	var out []core.Date
	for k := 1; ; k++ {
		d := s.Step(last, k)
		if d.After(today.Time) {
			return out
		}
		out = append(out, d)
	}
}

// addMonthsClamped keeps the day of month, clamped to the target month's
// last day so Jan 31 + 1 month is Feb 28/29 rather than early March.
func addMonthsClamped(d core.Date, months int) core.Date {
	first := core.NewDate(d.Year(), int(d.Month()), 1).AddDate(0, months, 0)
	lastDay := core.NewDate(first.Year(), int(first.Month())+1, 0).Day()
	day := d.Day()
	if day > lastDay {
		day = lastDay
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}

var stepStrategies = map[StepMode]map[core.Frequency]OccurrenceStrategy{
	ModeDayWalk: {
		core.Daily:   DayWalk{ElapsedDays: DailyElapsedDays},
		core.Weekly:  DayWalk{ElapsedDays: WeeklyElapsedDays},
		core.Monthly: DayWalk{ElapsedDays: MonthlyElapsedDays},
		core.Yearly:  DayWalk{ElapsedDays: YearlyElapsedDays},
	},
	ModeCalendar: {
		core.Daily:   CalendarStep{Step: func(d core.Date, k int) core.Date { return d.AddDays(k) }},
		core.Weekly:  CalendarStep{Step: func(d core.Date, k int) core.Date { return d.AddDays(7 * k) }},
		core.Monthly: CalendarStep{Step: addMonthsClamped},
		core.Yearly:  CalendarStep{Step: func(d core.Date, k int) core.Date { return addMonthsClamped(d, 12*k) }},
	},
}

// GetOccurrenceStrategy returns the strategy for a frequency under mode.
func GetOccurrenceStrategy(mode StepMode, frequency core.Frequency) (OccurrenceStrategy, error) {
	strategies, ok := stepStrategies[mode]
	if !ok {
		return nil, fmt.Errorf("unknown recurring mode: %s", mode)
	}
	s, ok := strategies[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrInvalidFrequency, frequency)
	}
	return s, nil
}

// Expander catches recurring records up to a reference date.
type Expander struct {
	mode StepMode
}

func NewExpander(mode StepMode) (*Expander, error) {
	if _, ok := stepStrategies[mode]; !ok {
		return nil, fmt.Errorf("unknown recurring mode: %s", mode)
	}
	return &Expander{mode: mode}, nil
}

func (e *Expander) Mode() StepMode { return e.mode }

// Expand returns records with every series head advanced to today and the
// missed occurrences appended after the existing rows, plus the number of
// rows appended. The input slice is not modified. One-time records and
// previously materialized occurrences are passed through unchanged.
func (e *Expander) Expand(records []core.Transaction, today core.Date) ([]core.Transaction, int, error) {
	updated := make([]core.Transaction, len(records))
	copy(updated, records)
	var materialized []core.Transaction

	for i, r := range records {
		if !r.SeriesHead() {
			continue
		}
		if r.Date.IsZero() {
			return nil, 0, &core.ParseError{Field: "date", Value: r.Date.String(), Err: core.ErrInvalidDate}
		}
		strategy, err := GetOccurrenceStrategy(e.mode, r.Frequency)
		if err != nil {
			return nil, 0, err
		}
		dates := strategy.Occurrences(r.Date, today)
		if len(dates) == 0 {
			continue
		}
		if r.ID == "" {
			r.ID = core.NewID()
			updated[i].ID = r.ID
		}
		for _, d := range dates {
			occ := r
			occ.ID = core.NewID()
			occ.Date = d
			occ.ParentID = r.ID
			materialized = append(materialized, occ)
		}
		updated[i].Date = today
	}

	return append(updated, materialized...), len(materialized), nil
}
