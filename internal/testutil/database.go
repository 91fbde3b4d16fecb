// Package testutil provides shared test fixtures for packages that sit above storage.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/Veraticus/spice-capture/internal/storage"
)

// TestDB is a migrated SQLite store scoped to a single test.
type TestDB struct {
	*storage.SQLiteStorage
	t *testing.T
}

// SetupTestDB creates a migrated database in the test's temp dir.
// It is closed automatically when the test finishes.
//
// Example:
//
//	db := testutil.SetupTestDB(t)
//	db.SeedUser("user-1")
//	food := db.MustGetCategory("user-1", "Food & Dining")
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return &TestDB{SQLiteStorage: store, t: t}
}

// SeedUser gives userID the default categories.
func (db *TestDB) SeedUser(userID string) {
	db.t.Helper()
	if err := db.EnsureUserSeeded(context.Background(), userID); err != nil {
		db.t.Fatalf("failed to seed user %q: %v", userID, err)
	}
}

// MustGetCategory returns the named category or fails the test.
func (db *TestDB) MustGetCategory(userID, name string) *model.Category {
	db.t.Helper()
	db.SeedUser(userID)
	cat, err := db.GetCategoryByName(context.Background(), userID, name)
	if err != nil {
		db.t.Fatalf("category %q not found for %q: %v", name, userID, err)
	}
	return cat
}

// SetMonthlyLimit sets a budget on the named category.
func (db *TestDB) SetMonthlyLimit(userID, category string, limit float64) {
	db.t.Helper()
	cat := db.MustGetCategory(userID, category)
	if err := db.SetBudget(context.Background(), &model.Budget{
		UserID:       userID,
		CategoryID:   cat.ID,
		MonthlyLimit: limit,
	}); err != nil {
		db.t.Fatalf("failed to set budget on %q: %v", category, err)
	}
}
