package model

import "time"

// Budget is a monthly spending limit for one category.
type Budget struct {
	UpdatedAt    time.Time `json:"updated_at"`
	UserID       string    `json:"user_id"`
	CategoryName string    `json:"category_name"`
	CategoryID   int64     `json:"category_id"`
	MonthlyLimit float64   `json:"monthly_limit"`
}

// BudgetWarning reports that a confirmed record pushed a category past its threshold.
type BudgetWarning struct {
	PeriodStart  time.Time `json:"period_start"`
	PeriodEnd    time.Time `json:"period_end"`
	CategoryName string    `json:"category_name"`
	CategoryID   int64     `json:"category_id"`
	Limit        float64   `json:"limit"`
	Spent        float64   `json:"spent"`
	Ratio        float64   `json:"ratio"`
}

// MonthBounds returns the first instant of t's month and of the following month.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 1, 0)
}
