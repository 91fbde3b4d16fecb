package tui

import (
	"context"

	"github.com/Veraticus/spice-capture/internal/model"
	tea "github.com/charmbracelet/bubbletea"
)

// submitTurn runs a turn off the UI goroutine.
func (m Model) submitTurn(content string) tea.Cmd {
	turns := m.config.Turns
	ctx := m.config.Context
	req := model.TurnRequest{
		ConversationID: m.conversationID,
		UserID:         m.config.UserID,
		Content:        content,
	}
	return func() tea.Msg {
		if ctx == nil {
			ctx = context.Background()
		}
		resp, err := turns.SubmitTurn(ctx, req)
		return turnResultMsg{resp: resp, err: err, sent: content}
	}
}
