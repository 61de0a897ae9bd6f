package core

import "github.com/shopspring/decimal"

// Totals aggregates an income/expense table.
type Totals struct {
	Income  Money
	Expense Money
	Balance Money
}

// Summarize sums income and expense amounts. An empty set yields zeros.
func Summarize(records []Transaction) Totals {
	var t Totals
	for _, r := range records {
		switch r.Kind {
		case Income:
			t.Income = t.Income.Add(r.Amount)
		case Expense:
			t.Expense = t.Expense.Add(r.Amount)
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// Balance is the sum of Income amounts minus the sum of Expense amounts.
func Balance(records []Transaction) Money {
	return Summarize(records).Balance
}

// Filter selects records by kind and frequency; empty values match everything.
func Filter(records []Transaction, kind Kind, freq Frequency) []Transaction {
	out := make([]Transaction, 0, len(records))
	for _, r := range records {
		if kind != "" && r.Kind != kind {
			continue
		}
		if freq != "" && r.Frequency != freq {
			continue
		}
		out = append(out, r)
	}
	return out
}

// GoalProgress returns min(current/target, 1). A zero target yields 0.
func GoalProgress(current, target Money) float64 {
	if target.Cents <= 0 {
		return 0
	}
	ratio := decimal.NewFromInt(current.Cents).Div(decimal.NewFromInt(target.Cents))
	if ratio.GreaterThan(decimal.NewFromInt(1)) {
		return 1
	}
	if ratio.IsNegative() {
		return 0
	}
	f, _ := ratio.Float64()
	return f
}

// OverallProgress applies GoalProgress to the summed targets and currents.
func OverallProgress(goals []Goal) float64 {
	var current, target Money
	for _, g := range goals {
		current = current.Add(g.Current)
		target = target.Add(g.Target)
	}
	return GoalProgress(current, target)
}

// SuggestedMonthlyContribution spreads the remaining amount over the months
// left until deadline, counting 30 days per month and never fewer than one
// month. The result is negative when current already exceeds target.
func SuggestedMonthlyContribution(target, current Money, deadline, today Date) Money {
	months := decimal.NewFromInt(int64(today.DaysUntil(deadline))).Div(decimal.NewFromInt(30))
	if months.LessThan(decimal.NewFromInt(1)) {
		months = decimal.NewFromInt(1)
	}
	needed := target.Sub(current).Decimal()
	return MoneyFromDecimal(needed.Div(months))
}

// Reached reports whether the goal's current amount covers its target.
func (g Goal) Reached() bool {
	return g.Current.Cents >= g.Target.Cents
}

// GoalStatus is the per-goal view computed for rendering.
type GoalStatus struct {
	Goal
	Progress           float64
	Reached            bool
	BalanceMeetsTarget bool
}

// GoalsOverview is everything the savings-goal page shows.
type GoalsOverview struct {
	Balance         Money
	Goals           []GoalStatus
	TotalTarget     Money
	TotalCurrent    Money
	OverallProgress float64
}

// Overview evaluates goals against the current balance.
func Overview(goals []Goal, balance Money) GoalsOverview {
	ov := GoalsOverview{Balance: balance, Goals: make([]GoalStatus, 0, len(goals))}
	for _, g := range goals {
		ov.Goals = append(ov.Goals, GoalStatus{
			Goal:               g,
			Progress:           GoalProgress(g.Current, g.Target),
			Reached:            g.Reached(),
			BalanceMeetsTarget: balance.Cents >= g.Target.Cents,
		})
		ov.TotalTarget = ov.TotalTarget.Add(g.Target)
		ov.TotalCurrent = ov.TotalCurrent.Add(g.Current)
	}
	ov.OverallProgress = OverallProgress(goals)
	return ov
}
