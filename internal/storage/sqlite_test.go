package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUser = "user-1"

// createTestStorage returns a migrated storage backed by a temporary file.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

// seededStorage returns a storage where testUser has the default categories.
func seededStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store := createTestStorage(t)
	require.NoError(t, store.EnsureUserSeeded(context.Background(), testUser))
	return store
}

func categoryID(t *testing.T, store *SQLiteStorage, name string) int64 {
	t.Helper()
	cat, err := store.GetCategoryByName(context.Background(), testUser, name)
	require.NoError(t, err)
	return cat.ID
}

func testRecord(t *testing.T, store *SQLiteStorage, id string, version int) *model.CandidateRecord {
	t.Helper()
	return &model.CandidateRecord{
		ID:             id,
		Version:        version,
		UserID:         testUser,
		ConversationID: "conv-" + id,
		Draft: model.Draft{
			Amount:         25000,
			Counterparty:   "Store X",
			Date:           time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
			CategoryID:     categoryID(t, store, "Shopping"),
			CategoryName:   "Shopping",
			CategorySource: model.CategoryFromRule,
		},
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.Migrate(ctx))

	var version int
	require.NoError(t, store.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version))
	assert.Equal(t, ExpectedSchemaVersion, version)
}

func TestNewSQLiteStorage_EmptyPath(t *testing.T) {
	_, err := NewSQLiteStorage("")
	assert.ErrorIs(t, err, ErrEmptyString)
}
