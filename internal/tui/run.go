package tui

import (
	"context"
	"fmt"
	"io"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the chat and blocks until the user quits. It returns the
// conversation id so the caller can offer to resume it.
func Run(ctx context.Context, cfg Config, in io.Reader, out io.Writer) (string, error) {
	if cfg.Turns == nil {
		return "", fmt.Errorf("turn submitter is required")
	}
	cfg.Context = ctx

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if in != nil {
		opts = append(opts, tea.WithInput(in))
	}
	if out != nil {
		opts = append(opts, tea.WithOutput(out))
	}

	final, err := tea.NewProgram(New(cfg), opts...).Run()
	if err != nil {
		return cfg.ConversationID, fmt.Errorf("chat failed: %w", err)
	}
	if m, ok := final.(Model); ok {
		return m.ConversationID(), nil
	}
	return cfg.ConversationID, nil
}
