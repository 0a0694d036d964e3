package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csvchat/csvchat/internal/table"
)

func citiesTable() *table.Table {
	return &table.Table{
		Name: "cities",
		Columns: table.Schema{
			{Name: "city", Type: table.TypeString},
			{Name: "pop", Type: table.TypeNumber},
			{Name: "region", Type: table.TypeString},
		},
		Rows: [][]table.Value{
			{table.StringValue("Paris"), table.NumberValue(2161000), table.StringValue("north")},
			{table.StringValue("Lyon"), table.NumberValue(513000), table.StringValue("south")},
			{table.StringValue("Marseille"), table.NumberValue(861000), table.StringValue("south")},
			{table.StringValue("Lille"), table.NumberValue(233000), table.StringValue("north")},
		},
	}
}

func TestExecuteFilterSelectScalar(t *testing.T) {
	expr := &Expression{
		Filter: []Predicate{{Column: "city", Op: "==", Value: "Lyon"}},
		Select: []string{"pop"},
	}

	result, err := Execute(context.Background(), citiesTable(), expr, DefaultLimits())
	require.NoError(t, err)

	assert.True(t, result.IsScalar())
	assert.Equal(t, "513000", result.Scalar.String())
	assert.Same(t, expr, result.Expr)
}

func TestExecuteAggregates(t *testing.T) {
	tests := []struct {
		name string
		agg  Aggregate
		want string
	}{
		{"sum", Aggregate{Op: "sum", Column: "pop"}, "3768000"},
		{"mean", Aggregate{Op: "mean", Column: "pop"}, "942000"},
		{"count column", Aggregate{Op: "count", Column: "pop"}, "4"},
		{"count rows", Aggregate{Op: "count"}, "4"},
		{"min", Aggregate{Op: "min", Column: "pop"}, "233000"},
		{"max", Aggregate{Op: "max", Column: "pop"}, "2161000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := tt.agg
			expr := &Expression{Aggregate: &agg}

			result, err := Execute(context.Background(), citiesTable(), expr, DefaultLimits())
			require.NoError(t, err)
			require.True(t, result.IsScalar())
			assert.Equal(t, tt.want, result.Scalar.String())
		})
	}
}

func TestExecuteGroupBy(t *testing.T) {
	expr := &Expression{
		Aggregate: &Aggregate{Op: "sum", Column: "pop", GroupBy: "region"},
	}

	result, err := Execute(context.Background(), citiesTable(), expr, DefaultLimits())
	require.NoError(t, err)

	require.Equal(t, ResultTable, result.Kind)
	require.Equal(t, 2, result.NumRows())
	assert.Equal(t, "sum_pop", result.Columns[1].Name)

	// groups appear in first-seen row order
	assert.Equal(t, "north", result.Rows[0][0].String())
	assert.Equal(t, "2394000", result.Rows[0][1].String())
	assert.Equal(t, "south", result.Rows[1][0].String())
	assert.Equal(t, "1374000", result.Rows[1][1].String())
}

func TestExecuteSortAndLimit(t *testing.T) {
	expr := &Expression{
		Select: []string{"city"},
		Sort:   []SortKey{{Column: "pop", Descending: true}},
		Limit:  2,
	}

	result, err := Execute(context.Background(), citiesTable(), expr, DefaultLimits())
	require.NoError(t, err)

	require.Equal(t, ResultColumn, result.Kind)
	require.Equal(t, 2, result.NumRows())
	assert.Equal(t, "Paris", result.Rows[0][0].String())
	assert.Equal(t, "Marseille", result.Rows[1][0].String())
}

func TestExecuteFilterModeOr(t *testing.T) {
	expr := &Expression{
		Filter: []Predicate{
			{Column: "city", Op: "==", Value: "Lyon"},
			{Column: "city", Op: "==", Value: "Lille"},
		},
		FilterMode: "or",
		Select:     []string{"city"},
	}

	result, err := Execute(context.Background(), citiesTable(), expr, DefaultLimits())
	require.NoError(t, err)
	assert.Equal(t, 2, result.NumRows())
}

func TestExecuteNumericComparisons(t *testing.T) {
	tests := []struct {
		op   string
		want int
	}{
		{">", 1},
		{">=", 2},
		{"<", 2},
		{"<=", 3},
		{"!=", 3},
		{"==", 1},
	}

	for _, tt := range tests {
		t.Run(tt.op, func(t *testing.T) {
			expr := &Expression{
				Filter: []Predicate{{Column: "pop", Op: tt.op, Value: float64(861000)}},
				Select: []string{"city"},
			}

			result, err := Execute(context.Background(), citiesTable(), expr, DefaultLimits())
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.NumRows())
		})
	}
}

func TestExecuteValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		expr *Expression
		kind Kind
	}{
		{
			"unknown filter column",
			&Expression{Filter: []Predicate{{Column: "altitude", Op: "==", Value: "x"}}},
			KindSchema,
		},
		{
			"unknown select column",
			&Expression{Select: []string{"altitude"}},
			KindSchema,
		},
		{
			"bad operator",
			&Expression{Filter: []Predicate{{Column: "city", Op: "~=", Value: "x"}}},
			KindUnsupported,
		},
		{
			"sum of string column",
			&Expression{Aggregate: &Aggregate{Op: "sum", Column: "city"}},
			KindType,
		},
		{
			"literal type mismatch",
			&Expression{Filter: []Predicate{{Column: "pop", Op: ">", Value: "many"}}},
			KindType,
		},
		{
			"sort key outside aggregate output",
			&Expression{
				Aggregate: &Aggregate{Op: "sum", Column: "pop", GroupBy: "region"},
				Sort:      []SortKey{{Column: "city"}},
			},
			KindSchema,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Execute(context.Background(), citiesTable(), tt.expr, DefaultLimits())
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestExecuteRowBudget(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxRowsScanned = 2

	_, err := Execute(context.Background(), citiesTable(), &Expression{}, limits)
	require.Error(t, err)
	assert.Equal(t, KindLimit, KindOf(err))
}

func TestExecuteResultBudget(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxResultRows = 2

	_, err := Execute(context.Background(), citiesTable(), &Expression{Select: []string{"city"}}, limits)
	require.Error(t, err)
	assert.Equal(t, KindLimit, KindOf(err))
}

func TestExecuteCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Execute(ctx, citiesTable(), &Expression{}, Limits{MaxExecutionTime: time.Minute})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestErrorKindMatching(t *testing.T) {
	err := newLimitError("over budget")

	assert.True(t, errors.Is(err, &Error{Kind: KindLimit}))
	assert.False(t, errors.Is(err, &Error{Kind: KindTimeout}))
}

func TestExpressionString(t *testing.T) {
	expr := &Expression{
		Filter: []Predicate{{Column: "city", Op: "==", Value: "Lyon"}},
		Select: []string{"pop"},
	}
	assert.Equal(t, "filter(city == Lyon); select(pop)", expr.String())

	empty := &Expression{}
	assert.Equal(t, "select(*)", empty.String())
}
