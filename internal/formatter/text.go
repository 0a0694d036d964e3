package formatter

import (
	"fmt"
	"strings"

	"github.com/yildizm/go-termfmt"

	"github.com/csvchat/csvchat/internal/qa"
)

// textFormatter formats answers for terminal display using go-termfmt
type textFormatter struct {
	opts    *termfmt.TerminalOptions
	sources bool
}

// NewText creates a terminal text formatter
func NewText(options Options) Formatter {
	opts := termfmt.DefaultOptions()
	opts.Color = !options.NoColor
	opts.Emoji = !options.NoColor

	return &textFormatter{opts: opts, sources: options.ShowSources}
}

func (f *textFormatter) Format(answer *qa.Answer) ([]byte, error) {
	var b strings.Builder

	b.WriteString(answer.Text)
	b.WriteString("\n")

	if answer.State == qa.StatePlanningFailed || answer.State == qa.StateExecutionFailed {
		symbol := termfmt.GetEmoji("warning", f.opts)
		b.WriteString(fmt.Sprintf("\n%s %s: %s\n", symbol, answer.State, answer.FailureReason))
		return []byte(b.String()), nil
	}

	if f.sources {
		f.writeProvenance(&b, answer)
	}

	return []byte(b.String()), nil
}

// writeProvenance renders how the answer was produced
func (f *textFormatter) writeProvenance(b *strings.Builder, answer *qa.Answer) {
	switch answer.Mode {
	case qa.ModeGenerate:
		if answer.Expr == nil {
			return
		}
		symbol := termfmt.GetEmoji("statistics", f.opts)
		b.WriteString(fmt.Sprintf("\n%s Derivation\n", symbol))

		items := []termfmt.TreeItem{
			{Label: "Query", Value: answer.Expr.String()},
			{Label: "Elapsed", Value: answer.Elapsed.String(), Last: true},
		}
		b.WriteString(termfmt.TreeViewWithOptions(items, f.opts))

	case qa.ModeRetrieve:
		if len(answer.Retrieved) == 0 {
			return
		}
		symbol := termfmt.GetEmoji("insights", f.opts)
		b.WriteString(fmt.Sprintf("\n%s Sources\n", symbol))

		items := make([]termfmt.TreeItem, 0, len(answer.Retrieved))
		for i, r := range answer.Retrieved {
			bar := termfmt.CreateConfidenceBar(float64(r.Score), f.opts)
			items = append(items, termfmt.TreeItem{
				Label: r.Record.DocID,
				Value: bar,
				Last:  i == len(answer.Retrieved)-1,
			})
		}
		b.WriteString(termfmt.TreeViewWithOptions(items, f.opts))
	}
}
