package tui

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style of the chat.
type Theme struct {
	Title     lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Error     lipgloss.Style
	Status    lipgloss.Style
	Pending   lipgloss.Style
	Footer    lipgloss.Style
}

// DefaultTheme is the default theme.
var DefaultTheme = Theme{
	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1),
	User:      lipgloss.NewStyle().Foreground(lipgloss.Color("#fafafa")).Bold(true),
	Assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1D3")),
	Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444")),
	Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("#737373")),
	Pending: lipgloss.NewStyle().
		Foreground(lipgloss.Color("#f59e0b")).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#404040")).
		Padding(0, 1),
	Footer: lipgloss.NewStyle().Foreground(lipgloss.Color("#737373")).MarginTop(1),
}
