package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTurns struct {
	errs     map[string]error
	requests []model.TurnRequest
}

func (r *recordingTurns) SubmitTurn(_ context.Context, req model.TurnRequest) (*model.TurnResponse, error) {
	r.requests = append(r.requests, req)
	if err := r.errs[req.Content]; err != nil {
		return nil, err
	}
	return &model.TurnResponse{
		ConversationID: "conv-1",
		Message:        "echo: " + req.Content,
		Node:           model.NodeAwaitConfirmation,
	}, nil
}

func TestConsole_Run(t *testing.T) {
	turns := &recordingTurns{errs: map[string]error{
		"flaky": common.NewRetryableError(errors.New("database is locked")),
		"bad":   errors.New("invalid turn: empty content"),
	}}
	var out bytes.Buffer
	console := NewConsole(turns, strings.NewReader("coffee 25000\n\nflaky\nbad\nyes\nquit\nignored\n"), &out, "user-1", "")
	var seen []string
	console.OnConversation = func(id string) { seen = append(seen, id) }

	require.NoError(t, console.Run(context.Background()))

	require.Len(t, turns.requests, 4)
	assert.Empty(t, turns.requests[0].ConversationID, "the first turn starts a conversation")
	assert.Equal(t, "conv-1", turns.requests[3].ConversationID)
	assert.Equal(t, "user-1", turns.requests[3].UserID)
	assert.Equal(t, "conv-1", console.ConversationID())
	assert.Equal(t, []string{"conv-1"}, seen)

	output := out.String()
	assert.Contains(t, output, "echo: coffee 25000")
	assert.Contains(t, output, "send it again")
	assert.Contains(t, output, "invalid turn")
	assert.NotContains(t, output, "ignored")
}

func TestConsole_RunStopsOnEOF(t *testing.T) {
	turns := &recordingTurns{}
	console := NewConsole(turns, strings.NewReader("coffee 25000\n"), &bytes.Buffer{}, "user-1", "conv-9")

	require.NoError(t, console.Run(context.Background()))
	require.Len(t, turns.requests, 1)
	assert.Equal(t, "conv-9", turns.requests[0].ConversationID)
}

func TestConsole_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pr, pw := io.Pipe()
	defer func() { _ = pw.Close() }()

	console := NewConsole(&recordingTurns{}, pr, &bytes.Buffer{}, "user-1", "")
	assert.ErrorIs(t, console.Run(ctx), context.Canceled)
}
