package formatter

import (
	"fmt"
	"strings"

	"github.com/csvchat/csvchat/internal/qa"
)

// markdownFormatter formats answers as markdown
type markdownFormatter struct {
	sources bool
}

// NewMarkdown creates a new markdown formatter
func NewMarkdown(options Options) Formatter {
	return &markdownFormatter{sources: options.ShowSources}
}

func (f *markdownFormatter) Format(answer *qa.Answer) ([]byte, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("## %s\n\n", answer.Question))
	b.WriteString(answer.Text)
	b.WriteString("\n")

	if answer.FailureReason != "" {
		b.WriteString(fmt.Sprintf("\n> %s: %s\n", answer.State, answer.FailureReason))
	}

	if f.sources {
		f.writeProvenance(&b, answer)
	}

	return []byte(b.String()), nil
}

func (f *markdownFormatter) writeProvenance(b *strings.Builder, answer *qa.Answer) {
	if answer.Expr != nil {
		b.WriteString("\n### Derivation\n\n")
		b.WriteString(fmt.Sprintf("`%s`\n", answer.Expr.String()))
	}

	if len(answer.Retrieved) > 0 {
		b.WriteString("\n### Sources\n\n")
		b.WriteString("| Document | Score | Text |\n")
		b.WriteString("|----------|-------|------|\n")
		for _, r := range answer.Retrieved {
			text := strings.ReplaceAll(r.Record.Text, "|", "\\|")
			b.WriteString(fmt.Sprintf("| %s | %.3f | %s |\n", r.Record.DocID, r.Score, text))
		}
	}
}
