package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
)

// GetActiveRules returns a user's active rules, highest confidence first
// and most recently updated first among equals.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context, userID string) ([]model.CategorizationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.user_id, r.pattern, r.match_type, r.category_id, c.name,
			r.confidence, r.use_count, r.is_active, r.created_at, r.updated_at
		FROM categorization_rules r
		JOIN categories c ON c.id = r.category_id
		WHERE r.user_id = ? AND r.is_active = 1 AND c.is_active = 1
		ORDER BY r.confidence DESC, r.updated_at DESC, r.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.CategorizationRule
	for rows.Next() {
		var rule model.CategorizationRule
		if err := rows.Scan(
			&rule.ID, &rule.UserID, &rule.Pattern, &rule.MatchType, &rule.CategoryID, &rule.CategoryName,
			&rule.Confidence, &rule.UseCount, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rules, nil
}

// UpsertRule inserts a rule keyed by (user, pattern). An existing rule pointing at the
// same category has its confidence boosted and capped; one pointing elsewhere is
// re-pointed and reset to the supplied confidence. The stored row is written back to rule.
func (s *SQLiteStorage) UpsertRule(ctx context.Context, rule *model.CategorizationRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	rule.Pattern = strings.TrimSpace(rule.Pattern)
	if rule.MatchType != model.MatchRegex {
		rule.Pattern = strings.ToLower(rule.Pattern)
	}
	now := s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categorization_rules
			(user_id, pattern, match_type, category_id, confidence, use_count, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, 1, ?, ?)
		ON CONFLICT(user_id, pattern) DO UPDATE SET
			confidence = CASE
				WHEN categorization_rules.category_id = excluded.category_id
				THEN MIN(?, categorization_rules.confidence + ?)
				ELSE excluded.confidence
			END,
			category_id = excluded.category_id,
			match_type = excluded.match_type,
			use_count = categorization_rules.use_count + 1,
			is_active = 1,
			updated_at = excluded.updated_at`,
		rule.UserID, rule.Pattern, rule.MatchType, rule.CategoryID, rule.Confidence, now, now,
		model.MaxRuleConfidence, model.RuleConfidenceBoost,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rule %q: %w", rule.Pattern, err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT id, confidence, use_count, is_active, created_at, updated_at
		FROM categorization_rules
		WHERE user_id = ? AND pattern = ?`, rule.UserID, rule.Pattern).Scan(
		&rule.ID, &rule.Confidence, &rule.UseCount, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to read back rule %q: %w", rule.Pattern, err)
	}

	return nil
}

// DeactivateRule stops a rule from matching without deleting it.
func (s *SQLiteStorage) DeactivateRule(ctx context.Context, userID string, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE categorization_rules SET is_active = 0, updated_at = ?
		WHERE user_id = ? AND id = ?`, s.now().UTC(), userID, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return common.ErrNotFound
	}
	return nil
}
