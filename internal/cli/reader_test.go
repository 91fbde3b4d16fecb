package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonBlockingReader_ReadLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "utterance",
			input: "coffee 25.000 at Store X\n",
			want:  []string{"coffee 25.000 at Store X"},
		},
		{
			name:  "windows line endings and padding",
			input: "  yes  \r\n",
			want:  []string{"yes"},
		},
		{
			name:  "capture then confirmation",
			input: "lunch 50k at Warung\n\nyes\n",
			want:  []string{"lunch 50k at Warung", "", "yes"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nbr := NewNonBlockingReader(strings.NewReader(tt.input))

			for _, want := range tt.want {
				got, err := nbr.ReadLine(context.Background())
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}

			_, err := nbr.ReadLine(context.Background())
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestNonBlockingReader_CancelledBeforeRead(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewNonBlockingReader(pr).ReadLine(ctx)
	assert.ErrorIs(t, err, ErrInputCancelled)
}

// pendingTurns answers every turn with a draft awaiting confirmation.
type pendingTurns struct {
	submitted chan model.TurnRequest
}

func (p *pendingTurns) SubmitTurn(_ context.Context, req model.TurnRequest) (*model.TurnResponse, error) {
	p.submitted <- req
	return &model.TurnResponse{
		ConversationID:       "conv-1",
		Message:              "I recorded Rp 25.000 under Food & Dining. Is that right?",
		Node:                 model.NodeAwaitConfirmation,
		AwaitingConfirmation: true,
		Draft:                &model.Draft{Amount: 25000, Counterparty: "Store X", CategoryName: "Food & Dining"},
	}, nil
}

func TestConsole_CancelWhileAwaitingConfirmation(t *testing.T) {
	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	turns := &pendingTurns{submitted: make(chan model.TurnRequest, 4)}
	var out bytes.Buffer
	console := NewConsole(turns, pr, &out, "user-1", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- console.Run(ctx) }()

	_, err := io.WriteString(pw, "coffee 25000 at Store X\n")
	require.NoError(t, err)

	select {
	case req := <-turns.submitted:
		assert.Equal(t, "coffee 25000 at Store X", req.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("capture turn was not submitted")
	}

	// The console is now blocked reading the reply to the draft.
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop after cancellation")
	}

	assert.Empty(t, turns.submitted, "no reply may be submitted after cancellation")
	assert.Equal(t, "conv-1", console.ConversationID())
	assert.Contains(t, out.String(), "Is that right?")
}
