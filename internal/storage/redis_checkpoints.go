package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces checkpoint keys.
const DefaultRedisKeyPrefix = "spice:conversation:"

// RedisCheckpointStore keeps conversation checkpoints in Redis.
// Retention is enforced with key expiry; version checks use WATCH/MULTI.
type RedisCheckpointStore struct {
	client *redis.Client
	now    func() time.Time
	prefix string
}

// NewRedisCheckpointStore creates a checkpoint store on client.
func NewRedisCheckpointStore(client *redis.Client, prefix string) *RedisCheckpointStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisCheckpointStore{client: client, prefix: prefix, now: time.Now}
}

// SetClock overrides the store clock.
func (r *RedisCheckpointStore) SetClock(now func() time.Time) {
	r.now = now
}

func (r *RedisCheckpointStore) key(conversationID string) string {
	return r.prefix + conversationID
}

// LoadCheckpoint returns the stored state of a conversation.
func (r *RedisCheckpointStore) LoadCheckpoint(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	if err := validateString(conversationID, "conversationID"); err != nil {
		return nil, err
	}

	raw, err := r.client.Get(ctx, r.key(conversationID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	var state model.ConversationState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrCheckpointCorrupted, err)
	}
	return &state, nil
}

// SaveCheckpoint writes state if the stored version still equals state.Version.
func (r *RedisCheckpointStore) SaveCheckpoint(ctx context.Context, state *model.ConversationState) error {
	if err := validateState(state); err != nil {
		return err
	}

	key := r.key(state.ConversationID)
	now := r.now()

	txf := func(tx *redis.Tx) error {
		var current int64
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return fmt.Errorf("failed to read checkpoint version: %w", err)
		default:
			var stored struct {
				Version int64 `json:"version"`
			}
			if err := json.Unmarshal(raw, &stored); err != nil {
				return fmt.Errorf("%w: %v", common.ErrCheckpointCorrupted, err)
			}
			current = stored.Version
		}

		if current != state.Version {
			return fmt.Errorf("%w: conversation %s at version %d, stored %d",
				common.ErrVersionConflict, state.ConversationID, state.Version, current)
		}

		next := *state
		next.Version = current + 1
		next.UpdatedAt = now
		data, err := json.Marshal(&next)
		if err != nil {
			return fmt.Errorf("failed to encode checkpoint: %w", err)
		}

		ttl := state.ExpiresAt.Sub(now)
		if ttl < time.Second {
			ttl = time.Second
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}

	err := r.client.Watch(ctx, txf, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: conversation %s changed during save", common.ErrVersionConflict, state.ConversationID)
	}
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	state.Version++
	state.UpdatedAt = now
	return nil
}

// DeleteCheckpoint removes a conversation checkpoint.
func (r *RedisCheckpointStore) DeleteCheckpoint(ctx context.Context, conversationID string) error {
	if err := r.client.Del(ctx, r.key(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// PruneCheckpoints is a no-op: Redis expires checkpoint keys on its own.
func (r *RedisCheckpointStore) PruneCheckpoints(_ context.Context, _ time.Time) (int, error) {
	return 0, nil
}
