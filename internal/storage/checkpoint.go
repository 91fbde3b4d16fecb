package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
)

// LoadCheckpoint returns the stored state of a conversation.
func (s *SQLiteStorage) LoadCheckpoint(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(conversationID, "conversationID"); err != nil {
		return nil, err
	}

	var (
		state                            model.ConversationState
		node                             string
		draft, corrections, lastResponse sql.NullString
		history                          string
		deadline                         sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, user_id, current_node, draft, correction_buffer, last_response,
			turn_history, record_id, record_version, last_turn_key, pending_confirmation,
			confirmation_deadline, expires_at, version, updated_at
		FROM conversation_checkpoints
		WHERE conversation_id = ?`, conversationID).Scan(
		&state.ConversationID, &state.UserID, &node, &draft, &corrections, &lastResponse,
		&history, &state.RecordID, &state.RecordVersion, &state.LastTurnKey, &state.PendingConfirmation,
		&deadline, &state.ExpiresAt, &state.Version, &state.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	state.CurrentNode = model.Node(node)
	if deadline.Valid {
		state.ConfirmationDeadline = deadline.Time
	}

	if err := decodeNullable(draft, &state.Draft); err != nil {
		return nil, fmt.Errorf("%w: draft: %v", common.ErrCheckpointCorrupted, err)
	}
	if err := decodeNullable(corrections, &state.CorrectionBuffer); err != nil {
		return nil, fmt.Errorf("%w: correction buffer: %v", common.ErrCheckpointCorrupted, err)
	}
	if err := decodeNullable(lastResponse, &state.LastResponse); err != nil {
		return nil, fmt.Errorf("%w: last response: %v", common.ErrCheckpointCorrupted, err)
	}
	if err := json.Unmarshal([]byte(history), &state.TurnHistory); err != nil {
		return nil, fmt.Errorf("%w: turn history: %v", common.ErrCheckpointCorrupted, err)
	}

	return &state, nil
}

// SaveCheckpoint writes state if nobody else has written since it was loaded.
// A state with Version 0 must not exist yet.
func (s *SQLiteStorage) SaveCheckpoint(ctx context.Context, state *model.ConversationState) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateState(state); err != nil {
		return err
	}

	draft, err := encodeNullable(state.Draft)
	if err != nil {
		return fmt.Errorf("failed to encode draft: %w", err)
	}
	corrections, err := encodeNullable(state.CorrectionBuffer)
	if err != nil {
		return fmt.Errorf("failed to encode correction buffer: %w", err)
	}
	lastResponse, err := encodeNullable(state.LastResponse)
	if err != nil {
		return fmt.Errorf("failed to encode last response: %w", err)
	}
	history := state.TurnHistory
	if history == nil {
		history = []model.Turn{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode turn history: %w", err)
	}

	var deadline sql.NullTime
	if !state.ConfirmationDeadline.IsZero() {
		deadline = sql.NullTime{Time: state.ConfirmationDeadline.UTC(), Valid: true}
	}

	now := s.now()
	var result sql.Result
	if state.Version == 0 {
		result, err = s.db.ExecContext(ctx, `
			INSERT INTO conversation_checkpoints (
				conversation_id, user_id, current_node, draft, correction_buffer, last_response,
				turn_history, record_id, record_version, last_turn_key, pending_confirmation,
				confirmation_deadline, expires_at, version, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
			ON CONFLICT(conversation_id) DO NOTHING`,
			state.ConversationID, state.UserID, string(state.CurrentNode), draft, corrections, lastResponse,
			string(historyJSON), state.RecordID, state.RecordVersion, state.LastTurnKey, state.PendingConfirmation,
			deadline, state.ExpiresAt.UTC(), now.UTC())
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE conversation_checkpoints SET
				user_id = ?, current_node = ?, draft = ?, correction_buffer = ?, last_response = ?,
				turn_history = ?, record_id = ?, record_version = ?, last_turn_key = ?,
				pending_confirmation = ?, confirmation_deadline = ?, expires_at = ?,
				version = version + 1, updated_at = ?
			WHERE conversation_id = ? AND version = ?`,
			state.UserID, string(state.CurrentNode), draft, corrections, lastResponse,
			string(historyJSON), state.RecordID, state.RecordVersion, state.LastTurnKey,
			state.PendingConfirmation, deadline, state.ExpiresAt.UTC(), now.UTC(),
			state.ConversationID, state.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: conversation %s at version %d", common.ErrVersionConflict, state.ConversationID, state.Version)
	}

	state.Version++
	state.UpdatedAt = now
	return nil
}

// DeleteCheckpoint removes a conversation checkpoint.
func (s *SQLiteStorage) DeleteCheckpoint(ctx context.Context, conversationID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_checkpoints WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// PruneCheckpoints deletes checkpoints whose retention ended before now.
func (s *SQLiteStorage) PruneCheckpoints(ctx context.Context, now time.Time) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM conversation_checkpoints WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune checkpoints: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

func encodeNullable[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeNullable[T any](raw sql.NullString, dest **T) error {
	if !raw.Valid || raw.String == "" {
		*dest = nil
		return nil
	}
	var v T
	if err := json.Unmarshal([]byte(raw.String), &v); err != nil {
		return err
	}
	*dest = &v
	return nil
}
