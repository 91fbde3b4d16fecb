package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/model"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedTurns struct {
	err      error
	requests []model.TurnRequest
}

func (s *scriptedTurns) SubmitTurn(_ context.Context, req model.TurnRequest) (*model.TurnResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if req.Content == "yes" {
		return &model.TurnResponse{ConversationID: "conv-1", Message: "Saved 25,000 under Shopping.", Node: model.NodeEnd}, nil
	}
	return &model.TurnResponse{
		ConversationID: "conv-1",
		Message:        "I recorded 25,000 under Shopping. Is that right?",
		Node:           model.NodeAwaitConfirmation,
		Draft: &model.Draft{
			Date:         time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
			Counterparty: "Store X",
			CategoryName: "Shopping",
			Amount:       25000,
		},
		AwaitingConfirmation: true,
	}, nil
}

// runCmd executes cmd and feeds any turn result back into the model.
func runCmd(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	msgs := []tea.Msg{cmd()}
	for len(msgs) > 0 {
		msg := msgs[0]
		msgs = msgs[1:]
		switch msg := msg.(type) {
		case tea.BatchMsg:
			for _, c := range msg {
				if c != nil {
					msgs = append(msgs, c())
				}
			}
		case turnResultMsg:
			next, _ := m.Update(msg)
			m = next.(Model)
		}
	}
	return m
}

func typeAndSend(t *testing.T, m Model, text string) Model {
	t.Helper()
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	next, cmd := next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.True(t, m.busy)
	return runCmd(t, m, cmd)
}

func TestModel_CaptureAndConfirm(t *testing.T) {
	turns := &scriptedTurns{}
	m := New(Config{Turns: turns, UserID: "user-1", Width: 80, Height: 30})

	m = typeAndSend(t, m, "coffee 25000 at Store X")
	assert.False(t, m.busy)
	assert.Equal(t, "conv-1", m.ConversationID())
	require.NotNil(t, m.pending)
	assert.Contains(t, m.View(), "Pending: 25,000 at Store X")
	assert.Empty(t, m.input.Value())

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	m = runCmd(t, next.(Model), cmd)

	require.Len(t, turns.requests, 2)
	assert.Equal(t, "yes", turns.requests[1].Content)
	assert.Equal(t, "conv-1", turns.requests[1].ConversationID)
	assert.Equal(t, "user-1", turns.requests[1].UserID)
	assert.Nil(t, m.pending)
	assert.Contains(t, m.View(), "Saved 25,000 under Shopping.")
}

func TestModel_ConfirmWithoutDraftIsIgnored(t *testing.T) {
	turns := &scriptedTurns{}
	m := New(Config{Turns: turns})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Nil(t, cmd)
	assert.False(t, next.(Model).busy)
	assert.Empty(t, turns.requests)
}

func TestModel_EmptyInputIsIgnored(t *testing.T) {
	turns := &scriptedTurns{}
	m := New(Config{Turns: turns})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, next.(Model).busy)
}

func TestModel_Errors(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want string
	}{
		{name: "retryable", err: common.NewRetryableError(errors.New("database is locked")), want: "Send it again"},
		{name: "fatal", err: errors.New("invalid turn"), want: "Something went wrong: invalid turn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(Config{Turns: &scriptedTurns{err: tt.err}, Width: 100})
			m = typeAndSend(t, m, "coffee")

			assert.False(t, m.busy)
			assert.Contains(t, m.View(), tt.want)
		})
	}
}

func TestModel_QuitAndResize(t *testing.T) {
	m := New(Config{Turns: &scriptedTurns{}})

	next, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	m = next.(Model)
	assert.Equal(t, 60, m.width)
	assert.Equal(t, 56, m.input.Width)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, next.View())
}

func TestModel_TranscriptFitsHeight(t *testing.T) {
	m := New(Config{Turns: &scriptedTurns{}, Width: 80, Height: 12})
	for range 10 {
		m = typeAndSend(t, m, "coffee 25000 at Store X")
	}

	view := m.View()
	assert.LessOrEqual(t, strings.Count(view, "\n")+1, 14)
}
