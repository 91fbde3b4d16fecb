package storage

import (
	"context"
	"testing"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureUserSeeded_Idempotent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureUserSeeded(ctx, testUser))
	first, err := store.GetCategories(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, first, len(model.DefaultCategorySeeds()))

	rules, err := store.GetActiveRules(ctx, testUser)
	require.NoError(t, err)
	require.NotEmpty(t, rules)

	// A user-created category must survive a second seeding call untouched.
	_, err = store.CreateCategory(ctx, testUser, "Pets", "")
	require.NoError(t, err)
	require.NoError(t, store.EnsureUserSeeded(ctx, testUser))

	second, err := store.GetCategories(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, second, len(first)+1)

	rulesAfter, err := store.GetActiveRules(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, rulesAfter, len(rules))
}

func TestEnsureUserSeeded_PerUser(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureUserSeeded(ctx, "alice"))

	cats, err := store.GetCategories(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, cats)

	require.NoError(t, store.EnsureUserSeeded(ctx, "bob"))
	cats, err = store.GetCategories(ctx, "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, cats)
}

func TestGetCategoryByName_CaseInsensitive(t *testing.T) {
	store := seededStorage(t)
	ctx := context.Background()

	cat, err := store.GetCategoryByName(ctx, testUser, "food & dining")
	require.NoError(t, err)
	assert.Equal(t, "Food & Dining", cat.Name)

	_, err = store.GetCategoryByName(ctx, testUser, "Nope")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestCreateCategory_ExistingNameReturnsSameCategory(t *testing.T) {
	store := seededStorage(t)
	ctx := context.Background()

	existing, err := store.GetCategoryByName(ctx, testUser, "Shopping")
	require.NoError(t, err)

	created, err := store.CreateCategory(ctx, testUser, "shopping", "dup")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, created.ID)

	byID, err := store.GetCategoryByID(ctx, testUser, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shopping", byID.Name)
}
