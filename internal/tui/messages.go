package tui

import "github.com/Veraticus/spice-capture/internal/model"

// turnResultMsg carries the outcome of a submitted turn back to the model.
type turnResultMsg struct {
	err  error
	resp *model.TurnResponse
	sent string
}

// entry is one line of the rendered transcript.
type entry struct {
	role model.Role
	text string
	err  bool
}
