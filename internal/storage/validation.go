// Package storage provides the SQLite and Redis persistence layers for the capture engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-capture/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidRule      = errors.New("invalid categorization rule")
	ErrInvalidRecord    = errors.New("invalid candidate record")
	ErrInvalidBudget    = errors.New("invalid budget")
	ErrInvalidState     = errors.New("invalid conversation state")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateRule(rule *model.CategorizationRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if rule.UserID == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return fmt.Errorf("%w: missing pattern", ErrInvalidRule)
	}
	if !rule.MatchType.Valid() {
		return fmt.Errorf("%w: unknown match type %q", ErrInvalidRule, rule.MatchType)
	}
	if rule.CategoryID <= 0 {
		return fmt.Errorf("%w: missing category", ErrInvalidRule)
	}
	if rule.Confidence < 0 || rule.Confidence > model.MaxRuleConfidence {
		return fmt.Errorf("%w: confidence %.2f out of range", ErrInvalidRule, rule.Confidence)
	}
	return nil
}

func validateRecord(record *model.CandidateRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRecord)
	}
	if record.Version < 1 {
		return fmt.Errorf("%w: version must be positive", ErrInvalidRecord)
	}
	if record.UserID == "" {
		return fmt.Errorf("%w: missing user", ErrInvalidRecord)
	}
	if record.CategoryID <= 0 {
		return fmt.Errorf("%w: missing category", ErrInvalidRecord)
	}
	if record.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidRecord)
	}
	if !record.IsMinimallyValid() {
		return fmt.Errorf("%w: amount and counterparty or description are required", ErrInvalidRecord)
	}
	return nil
}

func validateBudget(budget *model.Budget) error {
	if budget == nil {
		return fmt.Errorf("%w: budget", ErrNilParameter)
	}
	if budget.UserID == "" || budget.CategoryID <= 0 {
		return fmt.Errorf("%w: user and category are required", ErrInvalidBudget)
	}
	if budget.MonthlyLimit <= 0 {
		return fmt.Errorf("%w: monthly limit must be positive", ErrInvalidBudget)
	}
	return nil
}

func validateState(state *model.ConversationState) error {
	if state == nil {
		return fmt.Errorf("%w: state", ErrNilParameter)
	}
	if state.ConversationID == "" {
		return fmt.Errorf("%w: missing conversation ID", ErrInvalidState)
	}
	if state.CurrentNode == "" {
		return fmt.Errorf("%w: missing current node", ErrInvalidState)
	}
	if state.PendingConfirmation && state.Draft == nil {
		return fmt.Errorf("%w: pending confirmation without a draft", ErrInvalidState)
	}
	if state.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: missing expiry", ErrInvalidState)
	}
	return nil
}
