package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findRule(rules []model.CategorizationRule, pattern string) *model.CategorizationRule {
	for i := range rules {
		if rules[i].Pattern == pattern {
			return &rules[i]
		}
	}
	return nil
}

func TestUpsertRule_BoostsInsteadOfDuplicating(t *testing.T) {
	store := seededStorage(t)
	ctx := context.Background()
	transport := categoryID(t, store, "Transportation")

	for i := 0; i < 3; i++ {
		rule := &model.CategorizationRule{
			UserID:     testUser,
			Pattern:    "Pertamina",
			MatchType:  model.MatchKeyword,
			CategoryID: transport,
			Confidence: model.KeywordRuleBaseConfidence,
		}
		require.NoError(t, store.UpsertRule(ctx, rule))
	}

	rules, err := store.GetActiveRules(ctx, testUser)
	require.NoError(t, err)

	var matches int
	for _, r := range rules {
		if r.Pattern == "pertamina" {
			matches++
		}
	}
	require.Equal(t, 1, matches)

	rule := findRule(rules, "pertamina")
	require.NotNil(t, rule)
	assert.InDelta(t, 0.8, rule.Confidence, 0.0001)
	assert.Equal(t, 3, rule.UseCount)
	assert.Equal(t, "Transportation", rule.CategoryName)
}

func TestUpsertRule_ConfidenceCapped(t *testing.T) {
	store := seededStorage(t)
	ctx := context.Background()
	food := categoryID(t, store, "Food & Dining")

	var rule *model.CategorizationRule
	for i := 0; i < 10; i++ {
		rule = &model.CategorizationRule{
			UserID: testUser, Pattern: "warteg", MatchType: model.MatchKeyword,
			CategoryID: food, Confidence: 0.9,
		}
		require.NoError(t, store.UpsertRule(ctx, rule))
	}
	assert.InDelta(t, model.MaxRuleConfidence, rule.Confidence, 0.0001)
}

func TestUpsertRule_RepointResetsConfidence(t *testing.T) {
	store := seededStorage(t)
	ctx := context.Background()
	food := categoryID(t, store, "Food & Dining")
	shopping := categoryID(t, store, "Shopping")

	first := &model.CategorizationRule{
		UserID: testUser, Pattern: "indomaret", MatchType: model.MatchKeyword,
		CategoryID: food, Confidence: model.KeywordRuleBaseConfidence,
	}
	require.NoError(t, store.UpsertRule(ctx, first))
	require.NoError(t, store.UpsertRule(ctx, first))
	assert.InDelta(t, 0.7, first.Confidence, 0.0001)

	repointed := &model.CategorizationRule{
		UserID: testUser, Pattern: "indomaret", MatchType: model.MatchKeyword,
		CategoryID: shopping, Confidence: model.KeywordRuleBaseConfidence,
	}
	require.NoError(t, store.UpsertRule(ctx, repointed))

	assert.Equal(t, first.ID, repointed.ID)
	assert.InDelta(t, model.KeywordRuleBaseConfidence, repointed.Confidence, 0.0001)

	rules, err := store.GetActiveRules(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, "Shopping", findRule(rules, "indomaret").CategoryName)
}

func TestUpsertRule_Validation(t *testing.T) {
	store := seededStorage(t)
	ctx := context.Background()

	tests := []struct {
		rule *model.CategorizationRule
		name string
	}{
		{name: "nil", rule: nil},
		{name: "empty pattern", rule: &model.CategorizationRule{UserID: testUser, MatchType: model.MatchKeyword, CategoryID: 1}},
		{name: "bad match type", rule: &model.CategorizationRule{UserID: testUser, Pattern: "x", MatchType: "fuzzy", CategoryID: 1}},
		{name: "no category", rule: &model.CategorizationRule{UserID: testUser, Pattern: "x", MatchType: model.MatchExact}},
		{name: "confidence too high", rule: &model.CategorizationRule{UserID: testUser, Pattern: "x", MatchType: model.MatchExact, CategoryID: 1, Confidence: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, store.UpsertRule(ctx, tt.rule))
		})
	}
}

func TestGetActiveRules_OrderedByConfidenceThenRecency(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	cat, err := store.CreateCategory(ctx, testUser, "Coffee", "")
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, pattern := range []string{"older", "newer"} {
		store.SetClock(func() time.Time { return base.Add(time.Duration(i) * time.Hour) })
		require.NoError(t, store.UpsertRule(ctx, &model.CategorizationRule{
			UserID: testUser, Pattern: pattern, MatchType: model.MatchKeyword, CategoryID: cat.ID, Confidence: 0.6,
		}))
	}
	require.NoError(t, store.UpsertRule(ctx, &model.CategorizationRule{
		UserID: testUser, Pattern: "strong", MatchType: model.MatchKeyword, CategoryID: cat.ID, Confidence: 0.9,
	}))

	rules, err := store.GetActiveRules(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "strong", rules[0].Pattern)
	assert.Equal(t, "newer", rules[1].Pattern)
	assert.Equal(t, "older", rules[2].Pattern)
}

func TestDeactivateRule(t *testing.T) {
	store := seededStorage(t)
	ctx := context.Background()

	rule := &model.CategorizationRule{
		UserID: testUser, Pattern: "gojek", MatchType: model.MatchKeyword,
		CategoryID: categoryID(t, store, "Transportation"), Confidence: 0.6,
	}
	require.NoError(t, store.UpsertRule(ctx, rule))
	require.NoError(t, store.DeactivateRule(ctx, testUser, rule.ID))

	rules, err := store.GetActiveRules(ctx, testUser)
	require.NoError(t, err)
	assert.Nil(t, findRule(rules, "gojek"))

	assert.ErrorIs(t, store.DeactivateRule(ctx, testUser, 99999), common.ErrNotFound)
}
