package ofx

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorkflow struct {
	failOn   map[string]error
	clarify  map[string]bool
	requests []model.TurnRequest
}

func (f *fakeWorkflow) SubmitTurn(_ context.Context, req model.TurnRequest) (*model.TurnResponse, error) {
	f.requests = append(f.requests, req)
	for fragment, err := range f.failOn {
		if strings.Contains(req.Content, fragment) {
			return nil, err
		}
	}
	if req.Content == "yes" {
		return &model.TurnResponse{ConversationID: req.ConversationID, Node: model.NodeEnd}, nil
	}
	for fragment := range f.clarify {
		if strings.Contains(req.Content, fragment) {
			return &model.TurnResponse{ConversationID: req.ConversationID, Node: model.NodeClarify}, nil
		}
	}
	return &model.TurnResponse{ConversationID: req.ConversationID, Node: model.NodeAwaitConfirmation, AwaitingConfirmation: true}, nil
}

func statementLines() []StatementLine {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return []StatementLine{
		{Date: day, ID: "1", AccountID: "acct", Payee: "Store X", Amount: 25, Debit: true},
		{Date: day, ID: "2", AccountID: "acct", Payee: "PAYROLL", Amount: 1500},
		{Date: day, ID: "3", AccountID: "acct", Payee: "Mystery", Amount: 9, Debit: true},
		{Date: day, ID: "4", AccountID: "acct", Payee: "Broken", Amount: 12, Debit: true},
	}
}

func TestImporter_Import(t *testing.T) {
	tests := []struct {
		name        string
		want        ImportResult
		wantTurns   int
		autoConfirm bool
	}{
		{
			name:      "capture only",
			want:      ImportResult{Captured: 1, Skipped: 2, Failed: 1},
			wantTurns: 3,
		},
		{
			name:        "auto confirm",
			autoConfirm: true,
			want:        ImportResult{Captured: 1, Confirmed: 1, Skipped: 2, Failed: 1},
			wantTurns:   4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := &fakeWorkflow{
				failOn:  map[string]error{"Broken": errors.New("database is locked")},
				clarify: map[string]bool{"Mystery": true},
			}
			var progress []int

			result, err := NewImporter(wf, nil).Import(context.Background(), statementLines(), ImportOptions{
				UserID:      "user-1",
				AutoConfirm: tt.autoConfirm,
				Progress:    func(done, _ int) { progress = append(progress, done) },
			})
			require.NoError(t, err)

			assert.Equal(t, tt.want, result)
			assert.Len(t, wf.requests, tt.wantTurns)
			assert.Equal(t, []int{1, 2, 3, 4}, progress)

			first := wf.requests[0]
			assert.Equal(t, "ofx-acct-1", first.ConversationID)
			assert.Equal(t, "ofx:1", first.IdempotencyKey)
			assert.Equal(t, "user-1", first.UserID)
			assert.Equal(t, "Store X 25 on 2024-01-15", first.Content)
		})
	}
}

func TestImporter_ImportCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wf := &fakeWorkflow{}
	_, err := NewImporter(wf, nil).Import(ctx, statementLines(), ImportOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, wf.requests)
}
