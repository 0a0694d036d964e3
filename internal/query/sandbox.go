package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/csvchat/csvchat/internal/table"
)

// Limits bounds a single query execution. Every operator in the grammar
// has a closed-form cost in the number of rows, so the scan budget plus
// the time budget bound the whole computation.
type Limits struct {
	// MaxRowsScanned caps how many input rows one execution may visit
	MaxRowsScanned int

	// MaxResultRows caps the output size
	MaxResultRows int

	// MaxExecutionTime caps wall-clock execution time
	MaxExecutionTime time.Duration
}

// DefaultLimits returns the default execution budget
func DefaultLimits() Limits {
	return Limits{
		MaxRowsScanned:   1_000_000,
		MaxResultRows:    1_000,
		MaxExecutionTime: 10 * time.Second,
	}
}

// cancelCheckPeriod is the number of rows scanned between context checks
const cancelCheckPeriod = 256

// Execute runs a validated expression against a table under the given
// limits. The computation touches only the columns the expression names,
// performs no I/O and cannot loop unboundedly. All failures are returned
// as structured *Error values; Execute never panics on expression input.
func Execute(ctx context.Context, t *table.Table, expr *Expression, limits Limits) (*Result, error) {
	// Re-validate so an unvalidated expression can never reach execution
	if err := Validate(expr, t.Columns); err != nil {
		return nil, err
	}

	if limits.MaxExecutionTime > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limits.MaxExecutionTime)
		defer cancel()
	}

	matched, err := filterRows(ctx, t, expr, limits)
	if err != nil {
		return nil, err
	}

	if expr.Aggregate != nil {
		return aggregateRows(t, expr, matched, limits)
	}

	return projectRows(t, expr, matched, limits)
}

// filterRows scans the table once and returns the indices of matching rows
func filterRows(ctx context.Context, t *table.Table, expr *Expression, limits Limits) ([]int, error) {
	predicates, err := compilePredicates(expr, t.Columns)
	if err != nil {
		return nil, err
	}

	matchAll := expr.FilterMode != "or"

	var matched []int
	for i, row := range t.Rows {
		if limits.MaxRowsScanned > 0 && i >= limits.MaxRowsScanned {
			return nil, newLimitError(fmt.Sprintf("row scan budget of %d exhausted", limits.MaxRowsScanned))
		}
		if i%cancelCheckPeriod == 0 {
			if err := ctx.Err(); err != nil {
				return nil, newTimeoutError("execution time budget exhausted")
			}
		}

		if matchRow(row, predicates, matchAll) {
			matched = append(matched, i)
		}
	}

	return matched, nil
}

// compiled predicate with the literal already coerced to the column type
type compiledPredicate struct {
	colIndex int
	op       string
	literal  table.Value
}

func compilePredicates(expr *Expression, schema table.Schema) ([]compiledPredicate, error) {
	compiled := make([]compiledPredicate, 0, len(expr.Filter))
	for _, p := range expr.Filter {
		idx := schema.Index(p.Column)
		lit, err := literalValue(p.Value, schema[idx].Type)
		if err != nil {
			return nil, newTypeError(p.Column, err.Error())
		}
		compiled = append(compiled, compiledPredicate{colIndex: idx, op: p.Op, literal: lit})
	}
	return compiled, nil
}

func matchRow(row []table.Value, predicates []compiledPredicate, matchAll bool) bool {
	if len(predicates) == 0 {
		return true
	}

	for _, p := range predicates {
		ok := evalPredicate(row[p.colIndex], p)
		if matchAll && !ok {
			return false
		}
		if !matchAll && ok {
			return true
		}
	}

	return matchAll
}

func evalPredicate(cell table.Value, p compiledPredicate) bool {
	// Null cells match no comparison
	if cell.Null {
		return false
	}

	cmp, err := cell.Compare(p.literal)
	if err != nil {
		return false
	}

	switch p.op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

// projectRows applies sort, projection and limit to the matched rows
func projectRows(t *table.Table, expr *Expression, matched []int, limits Limits) (*Result, error) {
	if len(expr.Sort) > 0 {
		sortIndices(t, expr.Sort, matched)
	}

	if expr.Limit > 0 && len(matched) > expr.Limit {
		matched = matched[:expr.Limit]
	}

	if limits.MaxResultRows > 0 && len(matched) > limits.MaxResultRows {
		return nil, newLimitError(fmt.Sprintf("result exceeds budget of %d rows", limits.MaxResultRows))
	}

	names := expr.Select
	if len(names) == 0 {
		names = t.Columns.Names()
	}

	columns := make(table.Schema, len(names))
	colIndices := make([]int, len(names))
	for i, name := range names {
		idx := t.Columns.Index(name)
		columns[i] = t.Columns[idx]
		colIndices[i] = idx
	}

	rows := make([][]table.Value, len(matched))
	for i, rowIdx := range matched {
		row := make([]table.Value, len(colIndices))
		for j, colIdx := range colIndices {
			row[j] = t.Rows[rowIdx][colIdx]
		}
		rows[i] = row
	}

	return shapedResult(columns, rows, expr), nil
}

// sortIndices stably sorts row indices by the sort keys over the full table
func sortIndices(t *table.Table, keys []SortKey, indices []int) {
	type sortCol struct {
		idx  int
		desc bool
	}
	cols := make([]sortCol, len(keys))
	for i, k := range keys {
		cols[i] = sortCol{idx: t.Columns.Index(k.Column), desc: k.Descending}
	}

	sort.SliceStable(indices, func(a, b int) bool {
		for _, c := range cols {
			cmp, err := t.Rows[indices[a]][c.idx].Compare(t.Rows[indices[b]][c.idx])
			if err != nil || cmp == 0 {
				continue
			}
			if c.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// accumulator holds per-group aggregation state
type accumulator struct {
	key   table.Value
	count int
	sum   float64
	min   table.Value
	max   table.Value
	seen  bool
}

func (a *accumulator) add(v table.Value) {
	if v.Null {
		return
	}

	a.count++
	if v.Type == table.TypeNumber {
		a.sum += v.Num
	}

	if !a.seen {
		a.min, a.max, a.seen = v, v, true
		return
	}
	if cmp, err := v.Compare(a.min); err == nil && cmp < 0 {
		a.min = v
	}
	if cmp, err := v.Compare(a.max); err == nil && cmp > 0 {
		a.max = v
	}
}

func (a *accumulator) value(op string, colType table.Type) table.Value {
	switch op {
	case "count":
		return table.NumberValue(float64(a.count))
	case "sum":
		return table.NumberValue(a.sum)
	case "mean":
		if a.count == 0 {
			return table.NullValue(table.TypeNumber)
		}
		return table.NumberValue(a.sum / float64(a.count))
	case "min":
		if !a.seen {
			return table.NullValue(colType)
		}
		return a.min
	case "max":
		if !a.seen {
			return table.NullValue(colType)
		}
		return a.max
	}
	return table.NullValue(colType)
}

// aggregateRows reduces the matched rows to a scalar or a per-group table
func aggregateRows(t *table.Table, expr *Expression, matched []int, limits Limits) (*Result, error) {
	agg := expr.Aggregate

	colIdx := -1
	colType := table.TypeNumber
	if agg.Column != "" {
		colIdx = t.Columns.Index(agg.Column)
		colType = t.Columns[colIdx].Type
	}

	cell := func(rowIdx int) table.Value {
		if colIdx < 0 {
			// count without a column counts rows
			return table.NumberValue(1)
		}
		return t.Rows[rowIdx][colIdx]
	}

	if agg.GroupBy == "" {
		acc := &accumulator{}
		for _, rowIdx := range matched {
			acc.add(cell(rowIdx))
		}
		return scalarResult(acc.value(agg.Op, colType), expr), nil
	}

	groupIdx := t.Columns.Index(agg.GroupBy)

	// Group accumulation preserves first-seen order for determinism
	groups := make(map[string]*accumulator)
	var order []string
	for _, rowIdx := range matched {
		key := t.Rows[rowIdx][groupIdx]
		keyStr := key.String()
		acc, ok := groups[keyStr]
		if !ok {
			acc = &accumulator{key: key}
			groups[keyStr] = acc
			order = append(order, keyStr)
		}
		acc.add(cell(rowIdx))
	}

	columns := table.Schema{
		t.Columns[groupIdx],
		{Name: agg.ValueColumn(), Type: aggregateOutputType(agg.Op, colType)},
	}

	rows := make([][]table.Value, 0, len(order))
	for _, keyStr := range order {
		acc := groups[keyStr]
		rows = append(rows, []table.Value{acc.key, acc.value(agg.Op, colType)})
	}

	if len(expr.Sort) > 0 {
		sortOutputRows(columns, rows, expr.Sort)
	}

	if expr.Limit > 0 && len(rows) > expr.Limit {
		rows = rows[:expr.Limit]
	}

	if limits.MaxResultRows > 0 && len(rows) > limits.MaxResultRows {
		return nil, newLimitError(fmt.Sprintf("result exceeds budget of %d rows", limits.MaxResultRows))
	}

	return &Result{Kind: ResultTable, Columns: columns, Rows: rows, Expr: expr}, nil
}

func aggregateOutputType(op string, colType table.Type) table.Type {
	switch op {
	case "count", "sum", "mean":
		return table.TypeNumber
	default:
		return colType
	}
}

// sortOutputRows sorts materialized output rows by keys over the output schema
func sortOutputRows(columns table.Schema, rows [][]table.Value, keys []SortKey) {
	type sortCol struct {
		idx  int
		desc bool
	}
	cols := make([]sortCol, 0, len(keys))
	for _, k := range keys {
		if idx := columns.Index(k.Column); idx >= 0 {
			cols = append(cols, sortCol{idx: idx, desc: k.Descending})
		}
	}

	sort.SliceStable(rows, func(a, b int) bool {
		for _, c := range cols {
			cmp, err := rows[a][c.idx].Compare(rows[b][c.idx])
			if err != nil || cmp == 0 {
				continue
			}
			if c.desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}
