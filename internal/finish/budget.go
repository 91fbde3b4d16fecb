// Package finish runs the steps that follow a confirmed record: the budget check
// and optional advice.
package finish

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/Veraticus/spice-capture/internal/service"
)

// DefaultWarnRatio warns once spend reaches the full monthly limit.
const DefaultWarnRatio = 1.0

// BudgetEvaluator compares month-to-date spend against category budgets.
type BudgetEvaluator struct {
	budgets   service.BudgetStore
	warnRatio float64
}

// NewBudgetEvaluator creates an evaluator that warns once spend/limit reaches warnRatio.
func NewBudgetEvaluator(budgets service.BudgetStore, warnRatio float64) *BudgetEvaluator {
	if warnRatio <= 0 {
		warnRatio = DefaultWarnRatio
	}
	return &BudgetEvaluator{budgets: budgets, warnRatio: warnRatio}
}

// Evaluate returns a warning when the record's category is at or past its threshold
// for the record's month. Categories without a budget never warn.
func (e *BudgetEvaluator) Evaluate(ctx context.Context, record *model.CandidateRecord) (*model.BudgetWarning, error) {
	if record == nil {
		return nil, fmt.Errorf("nil record")
	}

	budget, err := e.budgets.GetBudget(ctx, record.UserID, record.CategoryID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading budget: %w", err)
	}
	if budget.MonthlyLimit <= 0 {
		return nil, nil
	}

	start, end := model.MonthBounds(record.Date)
	spent, err := e.budgets.SpentInPeriod(ctx, record.UserID, record.CategoryID, start, end)
	if err != nil {
		return nil, fmt.Errorf("summing spend: %w", err)
	}

	ratio := spent / budget.MonthlyLimit
	if ratio < e.warnRatio {
		return nil, nil
	}

	return &model.BudgetWarning{
		PeriodStart:  start,
		PeriodEnd:    end,
		CategoryName: budget.CategoryName,
		CategoryID:   budget.CategoryID,
		Limit:        budget.MonthlyLimit,
		Spent:        spent,
		Ratio:        ratio,
	}, nil
}

// WarningSummary renders a warning as a single line.
func WarningSummary(w *model.BudgetWarning) string {
	if w == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s of %s spent in %s (%.0f%%)",
		w.CategoryName,
		model.FormatAmount(w.Spent),
		model.FormatAmount(w.Limit),
		w.PeriodStart.Format("January 2006"),
		w.Ratio*100)
}
