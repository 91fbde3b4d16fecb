package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
)

// GetBudget returns the monthly budget for a category.
func (s *SQLiteStorage) GetBudget(ctx context.Context, userID string, categoryID int64) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var b model.Budget
	err := s.db.QueryRowContext(ctx, `
		SELECT b.user_id, b.category_id, c.name, b.monthly_limit, b.updated_at
		FROM budgets b
		JOIN categories c ON c.id = b.category_id
		WHERE b.user_id = ? AND b.category_id = ?`, userID, categoryID).Scan(
		&b.UserID, &b.CategoryID, &b.CategoryName, &b.MonthlyLimit, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query budget: %w", err)
	}
	return &b, nil
}

// SetBudget creates or replaces a category budget.
func (s *SQLiteStorage) SetBudget(ctx context.Context, budget *model.Budget) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBudget(budget); err != nil {
		return err
	}

	budget.UpdatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budgets (user_id, category_id, monthly_limit, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, category_id) DO UPDATE SET
			monthly_limit = excluded.monthly_limit,
			updated_at = excluded.updated_at`,
		budget.UserID, budget.CategoryID, budget.MonthlyLimit, budget.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}
	return nil
}

// SpentInPeriod sums confirmed record amounts of a category within [start, end).
func (s *SQLiteStorage) SpentInPeriod(ctx context.Context, userID string, categoryID int64, start, end time.Time) (float64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if end.Before(start) {
		return 0, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, end, start)
	}

	query, args, err := psql.Select("COALESCE(SUM(amount), 0)").
		From("records").
		Where(sq.Eq{
			"user_id":     userID,
			"category_id": categoryID,
			"status":      string(model.RecordConfirmed),
		}).
		Where(sq.GtOrEq{"record_date": start.UTC()}).
		Where(sq.Lt{"record_date": end.UTC()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build spend query: %w", err)
	}

	var spent float64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&spent); err != nil {
		return 0, fmt.Errorf("failed to sum spend: %w", err)
	}
	return spent, nil
}
