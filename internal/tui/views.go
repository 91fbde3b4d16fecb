package tui

import (
	"strings"

	"github.com/Veraticus/spice-capture/internal/model"
	"github.com/charmbracelet/lipgloss"
)

// View renders the chat.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	header := m.theme.Title.Render("🌶️  Tell me what you spent")

	var footer []string
	if summary := m.pendingSummary(); summary != "" {
		footer = append(footer, m.theme.Pending.Render(summary))
	}
	input := m.input.View()
	if m.busy {
		input = m.spinner.View() + m.theme.Status.Render(" thinking...")
	}
	footer = append(footer, input, m.theme.Footer.Render(m.help.View(m.keymap)))
	bottom := lipgloss.JoinVertical(lipgloss.Left, footer...)

	lines := m.transcriptLines()
	if m.height > 0 {
		room := m.height - lipgloss.Height(header) - lipgloss.Height(bottom)
		if room < 1 {
			room = 1
		}
		if len(lines) > room {
			lines = lines[len(lines)-room:]
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(lines, "\n"), bottom)
}

func (m Model) transcriptLines() []string {
	var lines []string
	for _, e := range m.transcript {
		style := m.theme.Assistant
		prefix := "spice: "
		switch {
		case e.err:
			style = m.theme.Error
		case e.role == model.RoleUser:
			style = m.theme.User
			prefix = "you:   "
		}

		text := e.text
		if m.width > len(prefix) {
			text = lipgloss.NewStyle().Width(m.width - len(prefix)).Render(text)
		}
		for i, line := range strings.Split(text, "\n") {
			if i > 0 {
				lines = append(lines, strings.Repeat(" ", len(prefix))+style.Render(line))
				continue
			}
			lines = append(lines, style.Render(prefix+line))
		}
	}
	return lines
}
