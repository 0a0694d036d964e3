// Package formatter renders answers for terminal, JSON and markdown output.
package formatter

import (
	"fmt"

	"github.com/csvchat/csvchat/internal/qa"
)

// Formatter defines the interface for output formatting
type Formatter interface {
	Format(answer *qa.Answer) ([]byte, error)
}

// Options controls formatter behavior
type Options struct {
	// ShowSources includes provenance (expression or retrieved rows)
	ShowSources bool

	// NoColor disables ANSI colors and emoji in terminal output
	NoColor bool
}

// New creates a formatter for the named format
func New(format string, options Options) (Formatter, error) {
	switch format {
	case "text", "":
		return NewText(options), nil
	case "json":
		return NewJSON(options), nil
	case "markdown", "md":
		return NewMarkdown(options), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
