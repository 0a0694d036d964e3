package planner

import (
	"fmt"
	"strings"

	"github.com/yildizm/go-promptfmt"

	"github.com/csvchat/csvchat/internal/query"
	"github.com/csvchat/csvchat/internal/table"
)

// QueryPlanPattern creates prompts that turn a natural-language question
// into a structured query expression over a known schema
type QueryPlanPattern struct {
	promptfmt.BasePattern
	Question      string
	Table         *table.Table
	SampleSize    int
	PreviousError string
}

// NewQueryPlanPattern creates a query planning pattern for a question
// against a table
func NewQueryPlanPattern(question string, t *table.Table) *QueryPlanPattern {
	return &QueryPlanPattern{
		BasePattern: promptfmt.BasePattern{
			Description: "Translates natural-language questions into structured table queries",
			Tags:        []string{"query-planning", "tabular", "csv"},
		},
		Question:   question,
		Table:      t,
		SampleSize: 3,
	}
}

// WithPreviousError feeds a validation failure from an earlier attempt
// back into the prompt
func (qp *QueryPlanPattern) WithPreviousError(message string) *QueryPlanPattern {
	qp.PreviousError = message
	return qp
}

func (qp *QueryPlanPattern) Build() *promptfmt.Prompt {
	pb := promptfmt.New().
		System("You are a query planner for tabular data. You translate questions into a restricted query structure. " +
			"Respond with a single JSON object using only these fields: " +
			`"select" (column names), "filter" (list of {column, op, value} with op one of ==, !=, <, <=, >, >=), ` +
			`"filter_mode" ("and" or "or"), "aggregate" ({op, column, group_by} with op one of sum, mean, count, min, max), ` +
			`"sort" (list of {column, descending}), "limit" (integer). ` +
			"Use only columns that exist in the schema. Never invent columns, functions or free-form code.").
		User("Translate this question into a query over the table %q:\n\n%s", qp.Table.Name, qp.Question)

	pb.AddContext("schema", qp.schemaContext())

	if qp.PreviousError != "" {
		pb.AddContext("previous_error",
			fmt.Sprintf("Your previous attempt was rejected: %s\nProduce a corrected query.", qp.PreviousError))
	}

	return pb.ExpectJSON(&query.Expression{}).Build()
}

// schemaContext renders the column list with types and sample values
func (qp *QueryPlanPattern) schemaContext() string {
	var b strings.Builder
	b.WriteString("Columns:\n")

	for _, col := range qp.Table.Columns {
		b.WriteString(fmt.Sprintf("- %s (%s)", col.Name, col.Type))
		if samples := qp.Table.SampleValues(col.Name, qp.SampleSize); len(samples) > 0 {
			b.WriteString(", e.g. " + strings.Join(samples, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("Rows: %d\n", qp.Table.NumRows()))
	return b.String()
}
