package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"tesoretto/internal/core"
)

type AlertLevel string

const (
	AlertOK       AlertLevel = "ok"
	AlertWarning  AlertLevel = "warning"
	AlertExceeded AlertLevel = "exceeded"
)

const DefaultWarningPercent = 80

var hundred = decimal.NewFromInt(100)

// BudgetStatus is one budget's spending for a month.
type BudgetStatus struct {
	Budget    core.BudgetGoal `json:"budget"`
	Year      int             `json:"year"`
	Month     int             `json:"month"`
	Spent     core.Money      `json:"spent"`
	Remaining core.Money      `json:"remaining"`
	Percent   decimal.Decimal `json:"percent"`
	Level     AlertLevel      `json:"level"`
}

// BudgetAlerts classifies monthly spending against budget limits.
type BudgetAlerts struct {
	warn decimal.Decimal
}

func NewBudgetAlerts(warningPercent int) *BudgetAlerts {
	if warningPercent <= 0 || warningPercent >= 100 {
		warningPercent = DefaultWarningPercent
	}
	return &BudgetAlerts{warn: decimal.NewFromInt(int64(warningPercent))}
}

func (a *BudgetAlerts) Level(percent decimal.Decimal) AlertLevel {
	switch {
	case percent.GreaterThanOrEqual(hundred):
		return AlertExceeded
	case percent.GreaterThanOrEqual(a.warn):
		return AlertWarning
	default:
		return AlertOK
	}
}

// Evaluate returns a status per budget, in budget order.
func (a *BudgetAlerts) Evaluate(budgets []core.BudgetGoal, expenses []core.Expense, year, month int) []BudgetStatus {
	overview := core.SummarizeMonth(expenses, year, month)
	out := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		spent := overview.Spent(b.Category)
		percent := decimal.Zero
		if b.Limit.Cents > 0 {
			percent = spent.Decimal().Div(b.Limit.Decimal()).Mul(hundred).Round(1)
		}
		out = append(out, BudgetStatus{
			Budget:    b,
			Year:      year,
			Month:     month,
			Spent:     spent,
			Remaining: b.Limit.Sub(spent),
			Percent:   percent,
			Level:     a.Level(percent),
		})
	}
	return out
}

// BudgetService reads a user's budgets and expenses and reports alerts.
type BudgetService struct {
	src    SnapshotSource
	alerts *BudgetAlerts
}

func NewBudgetService(src SnapshotSource, alerts *BudgetAlerts) *BudgetService {
	return &BudgetService{src: src, alerts: alerts}
}

func (s *BudgetService) Status(ctx context.Context, userID string, year, month int) ([]BudgetStatus, error) {
	if month < 1 || month > 12 {
		return nil, core.ErrInvalidMonth
	}
	budgets, err := s.src.ListBudgets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	expenses, err := s.src.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return s.alerts.Evaluate(budgets, expenses, year, month), nil
}
