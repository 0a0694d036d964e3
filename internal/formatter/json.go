package formatter

import (
	"encoding/json"

	"github.com/csvchat/csvchat/internal/qa"
)

// jsonFormatter formats answers as JSON
type jsonFormatter struct {
	sources bool
}

// NewJSON creates a new JSON formatter
func NewJSON(options Options) Formatter {
	return &jsonFormatter{sources: options.ShowSources}
}

// AnswerOutput is the JSON answer structure
type AnswerOutput struct {
	Question      string          `json:"question"`
	Answer        string          `json:"answer"`
	Mode          string          `json:"mode"`
	State         string          `json:"state"`
	ElapsedMillis int64           `json:"elapsed_ms"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Query         string          `json:"query,omitempty"`
	Sources       []*SourceOutput `json:"sources,omitempty"`
}

// SourceOutput is one retrieved document in the JSON output
type SourceOutput struct {
	DocID string  `json:"doc_id"`
	Text  string  `json:"text"`
	Score float32 `json:"score"`
}

func (f *jsonFormatter) Format(answer *qa.Answer) ([]byte, error) {
	output := &AnswerOutput{
		Question:      answer.Question,
		Answer:        answer.Text,
		Mode:          string(answer.Mode),
		State:         string(answer.State),
		ElapsedMillis: answer.Elapsed.Milliseconds(),
		FailureReason: answer.FailureReason,
	}

	if f.sources {
		if answer.Expr != nil {
			output.Query = answer.Expr.String()
		}
		for _, r := range answer.Retrieved {
			output.Sources = append(output.Sources, &SourceOutput{
				DocID: r.Record.DocID,
				Text:  r.Record.Text,
				Score: r.Score,
			})
		}
	}

	return json.MarshalIndent(output, "", "  ")
}
