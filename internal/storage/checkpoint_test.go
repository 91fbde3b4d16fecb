package storage

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/Veraticus/spice-capture/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingState(conversationID string, now time.Time) *model.ConversationState {
	state := model.NewConversationState(conversationID, testUser)
	state.CurrentNode = model.NodeAwaitConfirmation
	state.PendingConfirmation = true
	state.ConfirmationDeadline = now.Add(10 * time.Minute)
	state.ExpiresAt = now.Add(24 * time.Hour)
	state.RecordID = "rec-1"
	state.RecordVersion = 1
	state.Draft = &model.Draft{
		Amount:       25000,
		Counterparty: "Store X",
		Date:         time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		CategoryID:   3,
		CategoryName: "Shopping",
	}
	state.AppendTurn(model.Turn{Role: model.RoleUser, Content: "spent 25.000 at Store X", Kind: model.ContentText, At: now}, 0)
	return state
}

// checkpointStoreContract exercises the behavior every checkpoint backend shares.
func checkpointStoreContract(t *testing.T, store service.CheckpointStore) {
	ctx := context.Background()
	now := time.Now()

	_, err := store.LoadCheckpoint(ctx, "conv-1")
	require.ErrorIs(t, err, common.ErrNotFound)

	state := pendingState("conv-1", now)
	require.NoError(t, store.SaveCheckpoint(ctx, state))
	assert.Equal(t, int64(1), state.Version)

	loaded, err := store.LoadCheckpoint(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, model.NodeAwaitConfirmation, loaded.CurrentNode)
	assert.True(t, loaded.PendingConfirmation)
	assert.True(t, loaded.ConfirmationDeadline.Equal(state.ConfirmationDeadline))
	require.NotNil(t, loaded.Draft)
	assert.Equal(t, "Store X", loaded.Draft.Counterparty)
	assert.Equal(t, "rec-1", loaded.RecordID)
	require.Len(t, loaded.TurnHistory, 1)
	assert.Equal(t, int64(1), loaded.Version)

	// A stale writer loses.
	stale := pendingState("conv-1", now)
	err = store.SaveCheckpoint(ctx, stale)
	assert.ErrorIs(t, err, common.ErrVersionConflict)
	assert.Equal(t, int64(0), stale.Version)

	amount := 30000.0
	loaded.CorrectionBuffer = &model.Corrections{Amount: &amount}
	loaded.CurrentNode = model.NodeEnd
	loaded.PendingConfirmation = false
	loaded.LastResponse = &model.TurnResponse{ConversationID: "conv-1", Message: "Saved."}
	require.NoError(t, store.SaveCheckpoint(ctx, loaded))
	assert.Equal(t, int64(2), loaded.Version)

	again, err := store.LoadCheckpoint(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, model.NodeEnd, again.CurrentNode)
	require.NotNil(t, again.CorrectionBuffer)
	assert.InDelta(t, 30000.0, *again.CorrectionBuffer.Amount, 0.001)
	require.NotNil(t, again.LastResponse)
	assert.Equal(t, "Saved.", again.LastResponse.Message)

	// Writing against the version read before the last save fails.
	loaded.Version = 1
	assert.ErrorIs(t, store.SaveCheckpoint(ctx, loaded), common.ErrVersionConflict)

	require.NoError(t, store.DeleteCheckpoint(ctx, "conv-1"))
	_, err = store.LoadCheckpoint(ctx, "conv-1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteCheckpointStore(t *testing.T) {
	checkpointStoreContract(t, createTestStorage(t))
}

func TestSaveCheckpoint_RejectsPendingWithoutDraft(t *testing.T) {
	store := createTestStorage(t)
	state := pendingState("conv-1", time.Now())
	state.Draft = nil

	err := store.SaveCheckpoint(context.Background(), state)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestPruneCheckpoints(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	expired := pendingState("old", now)
	expired.ExpiresAt = now.Add(-time.Minute)
	require.NoError(t, store.SaveCheckpoint(ctx, expired))
	require.NoError(t, store.SaveCheckpoint(ctx, pendingState("fresh", now)))

	pruned, err := store.PruneCheckpoints(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	_, err = store.LoadCheckpoint(ctx, "old")
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = store.LoadCheckpoint(ctx, "fresh")
	assert.NoError(t, err)
}

func TestLoadCheckpoint_Corrupted(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	require.NoError(t, store.SaveCheckpoint(ctx, pendingState("conv-1", time.Now())))

	_, err := store.db.ExecContext(ctx,
		`UPDATE conversation_checkpoints SET draft = '{not json' WHERE conversation_id = ?`, "conv-1")
	require.NoError(t, err)

	_, err = store.LoadCheckpoint(ctx, "conv-1")
	assert.ErrorIs(t, err, common.ErrCheckpointCorrupted)
}
