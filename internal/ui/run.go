// Package ui implements the interactive terminal chat session.
package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the interactive chat session and blocks until the user quits
func Run(config ModelConfig) error {
	p := tea.NewProgram(
		NewModel(config),
		tea.WithAltScreen(),
	)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat session error: %w", err)
	}
	return nil
}
