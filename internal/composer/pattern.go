package composer

import (
	"fmt"
	"strings"

	"github.com/yildizm/go-promptfmt"

	"github.com/csvchat/csvchat/internal/query"
	"github.com/csvchat/csvchat/internal/vectorstore"
)

// ResultAnswerPattern creates prompts that turn a computed query result
// into a short prose answer
type ResultAnswerPattern struct {
	promptfmt.BasePattern
	Question string
	Result   *query.Result
}

// NewResultAnswerPattern creates an answer pattern for a query result
func NewResultAnswerPattern(question string, result *query.Result) *ResultAnswerPattern {
	return &ResultAnswerPattern{
		BasePattern: promptfmt.BasePattern{
			Description: "Renders a computed table result as a direct answer",
			Tags:        []string{"answer", "tabular", "csv"},
		},
		Question: question,
		Result:   result,
	}
}

func (rp *ResultAnswerPattern) Build() *promptfmt.Prompt {
	pb := promptfmt.New().
		System("You answer questions about tabular data. The result below was computed from the data and is authoritative. " +
			"Answer the question using only these values. Be direct and concise. Do not add information that is not in the result.").
		User("Question: %s", rp.Question)

	pb.AddContext("computed_result", renderResult(rp.Result))
	pb.AddContext("derivation", rp.Result.Expr.String())

	return pb.Build()
}

// renderResult serializes a result for the prompt
func renderResult(result *query.Result) string {
	if result.IsScalar() {
		return result.Scalar.String()
	}

	var b strings.Builder
	b.WriteString(strings.Join(result.Columns.Names(), " | "))
	b.WriteString("\n")

	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = cell.String()
		}
		b.WriteString(strings.Join(cells, " | "))
		b.WriteString("\n")
	}

	return b.String()
}

// ContextAnswerPattern creates prompts that answer a question strictly
// from retrieved row documents
type ContextAnswerPattern struct {
	promptfmt.BasePattern
	Question string
	Context  string
}

// NewContextAnswerPattern creates an answer pattern over retrieved rows
func NewContextAnswerPattern(question, context string) *ContextAnswerPattern {
	return &ContextAnswerPattern{
		BasePattern: promptfmt.BasePattern{
			Description: "Answers questions strictly from retrieved table rows",
			Tags:        []string{"answer", "retrieval", "csv"},
		},
		Question: question,
		Context:  context,
	}
}

func (cp *ContextAnswerPattern) Build() *promptfmt.Prompt {
	pb := promptfmt.New().
		System("%s", fmt.Sprintf("You answer questions strictly using the rows provided below. "+
			"If the rows do not contain the information needed, respond exactly with: %q. "+
			"Never use outside knowledge and never guess.", InsufficientDataAnswer)).
		User("Question: %s", cp.Question)

	pb.AddContext("rows", cp.Context)

	return pb.Build()
}

// joinDocuments concatenates retrieved documents in ranked order
func joinDocuments(results []vectorstore.SearchResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Record.Text
	}
	return strings.Join(texts, "\n")
}
