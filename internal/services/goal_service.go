package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"finassist/internal/amqp"
	"finassist/internal/core"
	"finassist/internal/sheets"
)

// BalanceSource supplies the income/expense balance shown next to goals.
type BalanceSource interface {
	Balance(ctx context.Context) (core.Money, error)
}

type GoalService struct {
	mu        sync.Mutex
	table     sheets.GoalTable
	balances  BalanceSource
	publisher ChangePublisher
}

func NewGoalService(table sheets.GoalTable, balances BalanceSource, publisher ChangePublisher) *GoalService {
	return &GoalService{table: table, balances: balances, publisher: publisher}
}

func (s *GoalService) List(ctx context.Context) ([]core.Goal, error) {
	goals, err := s.table.Load(ctx)
	if err != nil {
		return nil, storageErr(sheets.TableGoals, "load", err)
	}
	return goals, nil
}

// Add stores a new goal with its suggested monthly contribution computed
// against today. A blank name becomes core.DefaultGoalName.
func (s *GoalService) Add(ctx context.Context, g core.Goal, today core.Date) (core.Goal, error) {
	g.Name = strings.TrimSpace(g.Name)
	if g.Name == "" {
		g.Name = core.DefaultGoalName
	}
	if g.Frequency == "" {
		g.Frequency = core.OneTime
	}
	if err := g.Validate(); err != nil {
		return core.Goal{}, err
	}
	g.MonthlyContribution = core.SuggestedMonthlyContribution(g.Target, g.Current, g.Deadline, today)
	if g.ID == "" {
		g.ID = core.NewID()
	}

	s.mu.Lock()
	err := s.table.Upsert(ctx, g)
	s.mu.Unlock()
	if err != nil {
		return core.Goal{}, storageErr(sheets.TableGoals, "save", err)
	}

	slog.InfoContext(ctx, "Goal added",
		"id", g.ID,
		"name", g.Name,
		"target_cents", g.Target.Cents,
		"monthly_contribution_cents", g.MonthlyContribution.Cents)
	publish(ctx, s.publisher, sheets.TableGoals, amqp.OpInsert, g.ID, 1)
	return g, nil
}

// UpdateCurrent sets the saved amount of one goal. The stored monthly
// contribution is left as computed when the goal was added.
func (s *GoalService) UpdateCurrent(ctx context.Context, id string, current core.Money) (core.Goal, error) {
	if err := current.Validate(); err != nil {
		return core.Goal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	goals, err := s.table.Load(ctx)
	if err != nil {
		return core.Goal{}, storageErr(sheets.TableGoals, "load", err)
	}
	i := sheets.GoalCodec.IndexOf(goals, id)
	if i < 0 {
		return core.Goal{}, fmt.Errorf("goal %s: %w", id, core.ErrNotFound)
	}
	g := goals[i]
	g.Current = current
	if err := s.table.Upsert(ctx, g); err != nil {
		return core.Goal{}, storageErr(sheets.TableGoals, "save", err)
	}

	slog.InfoContext(ctx, "Goal updated", "id", id, "current_cents", current.Cents)
	publish(ctx, s.publisher, sheets.TableGoals, amqp.OpUpdate, id, 1)
	return g, nil
}

// Overview evaluates every goal against the current balance, re-read from
// the income/expense table on each call.
func (s *GoalService) Overview(ctx context.Context) (core.GoalsOverview, error) {
	goals, err := s.List(ctx)
	if err != nil {
		return core.GoalsOverview{}, err
	}
	balance, err := s.balances.Balance(ctx)
	if err != nil {
		return core.GoalsOverview{}, fmt.Errorf("compute balance: %w", err)
	}
	return core.Overview(goals, balance), nil
}

// ExportCSV writes the goal table in its stored CSV layout.
func (s *GoalService) ExportCSV(ctx context.Context, w io.Writer) error {
	goals, err := s.List(ctx)
	if err != nil {
		return err
	}
	return sheets.GoalCodec.WriteCSV(w, goals)
}
