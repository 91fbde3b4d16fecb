// Package service defines the persistence contracts shared by the capture engine.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/spice-capture/internal/model"
)

// CategoryStore manages per-user categories.
type CategoryStore interface {
	GetCategories(ctx context.Context, userID string) ([]model.Category, error)
	GetCategoryByName(ctx context.Context, userID, name string) (*model.Category, error)
	GetCategoryByID(ctx context.Context, userID string, id int64) (*model.Category, error)
	CreateCategory(ctx context.Context, userID, name, description string) (*model.Category, error)
	// EnsureUserSeeded creates the default categories and starter rules once per user.
	EnsureUserSeeded(ctx context.Context, userID string) error
}

// RuleStore manages categorization rules.
type RuleStore interface {
	GetActiveRules(ctx context.Context, userID string) ([]model.CategorizationRule, error)
	// UpsertRule inserts a rule or, when (user, pattern) exists, boosts or re-points it.
	UpsertRule(ctx context.Context, rule *model.CategorizationRule) error
	DeactivateRule(ctx context.Context, userID string, id int64) error
}

// RecordFilter narrows record listings.
type RecordFilter struct {
	From       *time.Time
	To         *time.Time
	CategoryID *int64
	UserID     string
	Status     model.RecordStatus
	Limit      uint64
}

// RecordStore persists versioned candidate records.
type RecordStore interface {
	// SaveRecordVersion inserts a new immutable version.
	SaveRecordVersion(ctx context.Context, record *model.CandidateRecord) error
	// ConfirmRecord confirms the latest version. Confirming twice is a no-op.
	ConfirmRecord(ctx context.Context, id string, version int, at time.Time) error
	GetRecord(ctx context.Context, id string) (*model.CandidateRecord, error)
	GetRecordVersions(ctx context.Context, id string) ([]model.CandidateRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.CandidateRecord, error)
}

// BudgetStore manages category budgets and spend aggregation.
type BudgetStore interface {
	GetBudget(ctx context.Context, userID string, categoryID int64) (*model.Budget, error)
	SetBudget(ctx context.Context, budget *model.Budget) error
	SpentInPeriod(ctx context.Context, userID string, categoryID int64, start, end time.Time) (float64, error)
}

// CheckpointStore persists conversation state with optimistic versioning.
type CheckpointStore interface {
	// LoadCheckpoint returns common.ErrNotFound when the conversation has no checkpoint.
	LoadCheckpoint(ctx context.Context, conversationID string) (*model.ConversationState, error)
	// SaveCheckpoint writes state when its Version matches the stored version, then increments it.
	// A mismatch returns common.ErrVersionConflict.
	SaveCheckpoint(ctx context.Context, state *model.ConversationState) error
	DeleteCheckpoint(ctx context.Context, conversationID string) error
	PruneCheckpoints(ctx context.Context, now time.Time) (int, error)
}

// Storage combines every SQLite-backed store.
type Storage interface {
	CategoryStore
	RuleStore
	RecordStore
	BudgetStore
	CheckpointStore
	Migrate(ctx context.Context) error
	Close() error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
