package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
)

const categoryColumns = `id, user_id, name, description, is_active, created_at`

// GetCategories returns all active categories of a user.
func (s *SQLiteStorage) GetCategories(ctx context.Context, userID string) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE user_id = ? AND is_active = 1
		ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "user_id", userID, "count", len(categories))
	return categories, nil
}

// GetCategoryByName returns the active category with the given name, compared case-insensitively.
func (s *SQLiteStorage) GetCategoryByName(ctx context.Context, userID, name string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE user_id = ? AND name = ? AND is_active = 1`, userID, strings.TrimSpace(name))
	return scanCategoryRow(row)
}

// GetCategoryByID returns a category owned by the user.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, userID string, id int64) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT `+categoryColumns+`
		FROM categories
		WHERE user_id = ? AND id = ?`, userID, id)
	return scanCategoryRow(row)
}

// CreateCategory creates a category or reactivates an existing one with the same name.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, userID, name, description string) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(name, "name"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.createCategoryTx(ctx, tx, userID, strings.TrimSpace(name), description); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit category: %w", err)
	}

	return s.GetCategoryByName(ctx, userID, name)
}

func (s *SQLiteStorage) createCategoryTx(ctx context.Context, tx *sql.Tx, userID, name, description string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO categories (user_id, name, description, is_active, created_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(user_id, name) DO UPDATE SET is_active = 1`,
		userID, name, description, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to create category %q: %w", name, err)
	}
	return nil
}

// EnsureUserSeeded creates the default categories and starter keyword rules for a user.
// It runs once per user; later calls return without touching existing data.
func (s *SQLiteStorage) EnsureUserSeeded(ctx context.Context, userID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := s.now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO user_seeds (user_id, seeded_at) VALUES (?, ?) ON CONFLICT(user_id) DO NOTHING`,
		userID, now)
	if err != nil {
		return fmt.Errorf("failed to mark user seeded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	for _, seed := range model.DefaultCategorySeeds() {
		if err := s.createCategoryTx(ctx, tx, userID, seed.Name, seed.Description); err != nil {
			return err
		}

		var categoryID int64
		if err := tx.QueryRowContext(ctx,
			`SELECT id FROM categories WHERE user_id = ? AND name = ?`, userID, seed.Name).Scan(&categoryID); err != nil {
			return fmt.Errorf("failed to look up seeded category %q: %w", seed.Name, err)
		}

		for _, keyword := range seed.Keywords {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO categorization_rules
					(user_id, pattern, match_type, category_id, confidence, use_count, is_active, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, 0, 1, ?, ?)
				ON CONFLICT(user_id, pattern) DO NOTHING`,
				userID, keyword, model.MatchKeyword, categoryID, model.KeywordRuleBaseConfidence, now, now)
			if err != nil {
				return fmt.Errorf("failed to seed rule %q: %w", keyword, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit user seed: %w", err)
	}

	slog.Info("Seeded user categories", "user_id", userID)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var cat model.Category
	if err := row.Scan(&cat.ID, &cat.UserID, &cat.Name, &cat.Description, &cat.IsActive, &cat.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}
	return &cat, nil
}

func scanCategoryRow(row *sql.Row) (*model.Category, error) {
	cat, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	return cat, err
}
