// Package tui provides an interactive chat for capturing records.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-capture/internal/common"
	"github.com/Veraticus/spice-capture/internal/finish"
	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// TurnSubmitter runs one conversation turn.
type TurnSubmitter interface {
	SubmitTurn(ctx context.Context, req model.TurnRequest) (*model.TurnResponse, error)
}

// Config configures the chat.
type Config struct {
	Context        context.Context
	Turns          TurnSubmitter
	UserID         string
	ConversationID string
	Width          int
	Height         int
}

// Model holds the chat state.
type Model struct {
	theme          Theme
	pending        *model.Draft
	config         Config
	keymap         KeyMap
	input          textinput.Model
	spinner        spinner.Model
	help           help.Model
	conversationID string
	transcript     []entry
	width          int
	height         int
	busy           bool
	quitting       bool
}

// New creates the chat model.
func New(cfg Config) Model {
	ti := textinput.New()
	ti.Placeholder = "coffee 25.000 at Store X"
	ti.Prompt = "› "
	ti.CharLimit = 500
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = DefaultTheme.Status

	return Model{
		theme:          DefaultTheme,
		config:         cfg,
		keymap:         DefaultKeyMap(),
		input:          ti,
		spinner:        sp,
		help:           help.New(),
		conversationID: cfg.ConversationID,
		width:          cfg.Width,
		height:         cfg.Height,
	}
}

// ConversationID returns the conversation the chat is attached to.
func (m Model) ConversationID() string {
	return m.conversationID
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		m.help.Width = msg.Width
		return m, nil

	case turnResultMsg:
		m.busy = false
		m.handleResult(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.ToggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keymap.Confirm):
		if m.busy || m.pending == nil {
			return m, nil
		}
		return m.send("yes")

	case key.Matches(msg, m.keymap.Send):
		if m.busy {
			return m, nil
		}
		content := strings.TrimSpace(m.input.Value())
		if content == "" {
			return m, nil
		}
		m.input.SetValue("")
		return m.send(content)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) send(content string) (tea.Model, tea.Cmd) {
	m.transcript = append(m.transcript, entry{role: model.RoleUser, text: content})
	m.busy = true
	return m, tea.Batch(m.submitTurn(content), m.spinner.Tick)
}

func (m *Model) handleResult(msg turnResultMsg) {
	if msg.err != nil {
		text := "Something went wrong: " + msg.err.Error()
		if common.IsRetryable(msg.err) {
			text = "Couldn't save that just now. Send it again when you're ready."
		}
		m.transcript = append(m.transcript, entry{role: model.RoleAssistant, text: text, err: true})
		return
	}

	resp := msg.resp
	m.conversationID = resp.ConversationID
	m.pending = nil
	if resp.AwaitingConfirmation {
		m.pending = resp.Draft
	}

	text := resp.Message
	if resp.BudgetWarning != nil {
		text += "\n" + budgetLine(resp.BudgetWarning)
	}
	if resp.Advice != nil && *resp.Advice != "" {
		text += "\n💡 " + *resp.Advice
	}
	m.transcript = append(m.transcript, entry{role: model.RoleAssistant, text: text})
}

// pendingSummary describes the draft awaiting confirmation.
func (m Model) pendingSummary() string {
	if m.pending == nil {
		return ""
	}
	return fmt.Sprintf("Pending: %s", m.pending.Summary())
}

func budgetLine(w *model.BudgetWarning) string {
	if w == nil {
		return ""
	}
	return "⚠️  " + finish.WarningSummary(w)
}
