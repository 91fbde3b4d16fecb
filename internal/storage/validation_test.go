package storage

import (
	"testing"
	"time"

	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestValidateRule(t *testing.T) {
	valid := func() *model.CategorizationRule {
		return &model.CategorizationRule{
			UserID:     testUser,
			Pattern:    "store x",
			MatchType:  model.MatchExact,
			CategoryID: 3,
			Confidence: 0.8,
		}
	}

	tests := []struct {
		wantErr error
		mutate  func(r *model.CategorizationRule)
		name    string
	}{
		{name: "valid", mutate: func(*model.CategorizationRule) {}},
		{name: "missing user", mutate: func(r *model.CategorizationRule) { r.UserID = "" }, wantErr: ErrInvalidRule},
		{name: "blank pattern", mutate: func(r *model.CategorizationRule) { r.Pattern = "  " }, wantErr: ErrInvalidRule},
		{name: "unknown match type", mutate: func(r *model.CategorizationRule) { r.MatchType = "fuzzy" }, wantErr: ErrInvalidRule},
		{name: "missing category", mutate: func(r *model.CategorizationRule) { r.CategoryID = 0 }, wantErr: ErrInvalidRule},
		{name: "confidence above max", mutate: func(r *model.CategorizationRule) { r.Confidence = 1.5 }, wantErr: ErrInvalidRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := validateRule(r)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assert.ErrorIs(t, validateRule(nil), ErrNilParameter)
}

func TestValidateRecord(t *testing.T) {
	valid := func() *model.CandidateRecord {
		return &model.CandidateRecord{
			ID:      "rec-1",
			Version: 1,
			UserID:  testUser,
			Draft: model.Draft{
				Amount:       25000,
				Counterparty: "Store X",
				Date:         time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
				CategoryID:   2,
			},
		}
	}

	tests := []struct {
		mutate  func(r *model.CandidateRecord)
		name    string
		wantErr bool
	}{
		{name: "valid", mutate: func(*model.CandidateRecord) {}},
		{name: "description instead of counterparty", mutate: func(r *model.CandidateRecord) {
			r.Counterparty = ""
			r.Description = "coffee"
		}},
		{name: "missing id", mutate: func(r *model.CandidateRecord) { r.ID = "" }, wantErr: true},
		{name: "zero version", mutate: func(r *model.CandidateRecord) { r.Version = 0 }, wantErr: true},
		{name: "missing user", mutate: func(r *model.CandidateRecord) { r.UserID = "" }, wantErr: true},
		{name: "missing category", mutate: func(r *model.CandidateRecord) { r.CategoryID = 0 }, wantErr: true},
		{name: "missing date", mutate: func(r *model.CandidateRecord) { r.Date = time.Time{} }, wantErr: true},
		{name: "zero amount", mutate: func(r *model.CandidateRecord) { r.Amount = 0 }, wantErr: true},
		{name: "no counterparty or description", mutate: func(r *model.CandidateRecord) { r.Counterparty = "" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid()
			tt.mutate(r)
			err := validateRecord(r)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestValidateState(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		state   *model.ConversationState
		wantErr error
		name    string
	}{
		{
			name:  "idle conversation",
			state: &model.ConversationState{ConversationID: "c", CurrentNode: model.NodeEnd, ExpiresAt: now},
		},
		{
			name:    "nil state",
			wantErr: ErrNilParameter,
		},
		{
			name:    "missing conversation id",
			state:   &model.ConversationState{CurrentNode: model.NodeEnd, ExpiresAt: now},
			wantErr: ErrInvalidState,
		},
		{
			name:    "missing node",
			state:   &model.ConversationState{ConversationID: "c", ExpiresAt: now},
			wantErr: ErrInvalidState,
		},
		{
			name: "pending without draft",
			state: &model.ConversationState{
				ConversationID:      "c",
				CurrentNode:         model.NodeAwaitConfirmation,
				PendingConfirmation: true,
				ExpiresAt:           now,
			},
			wantErr: ErrInvalidState,
		},
		{
			name:    "missing expiry",
			state:   &model.ConversationState{ConversationID: "c", CurrentNode: model.NodeEnd},
			wantErr: ErrInvalidState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateState(tt.state)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
