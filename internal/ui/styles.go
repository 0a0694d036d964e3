package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the chat session styling definitions
type Styles struct {
	App lipgloss.Style

	// Transcript
	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	AnswerText     lipgloss.Style
	FailureText    lipgloss.Style
	Provenance     lipgloss.Style

	// Status bar
	StatusBar  lipgloss.Style
	StatusMode lipgloss.Style
	StatusBusy lipgloss.Style

	// Input
	InputStyle lipgloss.Style

	// General
	Muted lipgloss.Style
	Bold  lipgloss.Style
}

// DefaultStyles creates the default style set using the default renderer
func DefaultStyles() Styles {
	return NewStyles(lipgloss.DefaultRenderer())
}

// NewStyles creates the style set using the given renderer
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		App: r.NewStyle(),

		UserLabel: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),

		AssistantLabel: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")),

		AnswerText: r.NewStyle(),

		FailureText: r.NewStyle().
			Foreground(lipgloss.Color("214")),

		Provenance: r.NewStyle().
			Foreground(lipgloss.Color("245")),

		StatusBar: r.NewStyle().
			Foreground(lipgloss.Color("250")).
			Background(lipgloss.Color("236")).
			Padding(0, 1),

		StatusMode: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1),

		StatusBusy: r.NewStyle().
			Foreground(lipgloss.Color("214")).
			Background(lipgloss.Color("236")).
			Padding(0, 1),

		InputStyle: r.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1),

		Muted: r.NewStyle().
			Foreground(lipgloss.Color("241")),

		Bold: r.NewStyle().
			Bold(true),
	}
}
