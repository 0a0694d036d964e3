package query

import (
	"fmt"
	"strings"

	"github.com/csvchat/csvchat/internal/table"
)

// Expression is the restricted query grammar: filter, select, aggregate,
// sort and limit over a single table. It is the only shape of computation
// the sandbox executes; model output is parsed into this form and validated
// before any execution. There are no function calls, imports or I/O.
type Expression struct {
	// Select names the columns to project, in output order.
	// Empty means all columns.
	Select []string `json:"select,omitempty"`

	// Filter is a list of predicates combined with FilterMode
	Filter []Predicate `json:"filter,omitempty"`

	// FilterMode is "and" (default) or "or"
	FilterMode string `json:"filter_mode,omitempty"`

	// Aggregate reduces rows to a scalar or a per-group table
	Aggregate *Aggregate `json:"aggregate,omitempty"`

	// Sort orders the output rows
	Sort []SortKey `json:"sort,omitempty"`

	// Limit truncates the output to at most this many rows (0 = no limit)
	Limit int `json:"limit,omitempty"`
}

// Predicate compares a column against a literal value
type Predicate struct {
	Column string      `json:"column"`
	Op     string      `json:"op"`
	Value  interface{} `json:"value"`
}

// Aggregate describes a reduction over the filtered rows
type Aggregate struct {
	// Op is one of sum, mean, count, min, max
	Op string `json:"op"`

	// Column is the aggregated column; optional for count
	Column string `json:"column,omitempty"`

	// GroupBy partitions rows by this column before aggregating
	GroupBy string `json:"group_by,omitempty"`
}

// SortKey orders output rows by a column
type SortKey struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending,omitempty"`
}

var comparisonOps = map[string]bool{
	"==": true,
	"!=": true,
	"<":  true,
	"<=": true,
	">":  true,
	">=": true,
}

var aggregateOps = map[string]bool{
	"sum":   true,
	"mean":  true,
	"count": true,
	"min":   true,
	"max":   true,
}

// String renders the expression for provenance display and prompts
func (e *Expression) String() string {
	var parts []string

	if len(e.Filter) > 0 {
		preds := make([]string, len(e.Filter))
		for i, p := range e.Filter {
			preds[i] = fmt.Sprintf("%s %s %v", p.Column, p.Op, p.Value)
		}
		joiner := " and "
		if e.FilterMode == "or" {
			joiner = " or "
		}
		parts = append(parts, "filter("+strings.Join(preds, joiner)+")")
	}

	if e.Aggregate != nil {
		agg := e.Aggregate.Op
		if e.Aggregate.Column != "" {
			agg += "(" + e.Aggregate.Column + ")"
		}
		if e.Aggregate.GroupBy != "" {
			agg += " by " + e.Aggregate.GroupBy
		}
		parts = append(parts, agg)
	} else if len(e.Select) > 0 {
		parts = append(parts, "select("+strings.Join(e.Select, ", ")+")")
	}

	for _, k := range e.Sort {
		dir := "asc"
		if k.Descending {
			dir = "desc"
		}
		parts = append(parts, fmt.Sprintf("sort(%s %s)", k.Column, dir))
	}

	if e.Limit > 0 {
		parts = append(parts, fmt.Sprintf("limit(%d)", e.Limit))
	}

	if len(parts) == 0 {
		return "select(*)"
	}
	return strings.Join(parts, "; ")
}

// ValueColumn returns the output column name of the aggregate value
func (a *Aggregate) ValueColumn() string {
	if a.Column == "" {
		return a.Op
	}
	return a.Op + "_" + a.Column
}

// Validate checks the expression against the grammar and the table schema.
// Every violated column reference or out-of-grammar construct is rejected
// here, before execution.
func Validate(expr *Expression, schema table.Schema) error {
	if expr == nil {
		return newUnsupportedError("empty expression")
	}

	if expr.FilterMode != "" && expr.FilterMode != "and" && expr.FilterMode != "or" {
		return newUnsupportedError(fmt.Sprintf("filter mode %q is not supported", expr.FilterMode))
	}

	for _, p := range expr.Filter {
		if err := validatePredicate(p, schema); err != nil {
			return err
		}
	}

	for _, name := range expr.Select {
		if schema.Index(name) < 0 {
			return newSchemaError(name)
		}
	}

	if expr.Aggregate != nil {
		if err := validateAggregate(expr.Aggregate, schema); err != nil {
			return err
		}
	}

	if err := validateSort(expr, schema); err != nil {
		return err
	}

	if expr.Limit < 0 {
		return newUnsupportedError("negative limit")
	}

	return nil
}

func validatePredicate(p Predicate, schema table.Schema) error {
	idx := schema.Index(p.Column)
	if idx < 0 {
		return newSchemaError(p.Column)
	}

	if !comparisonOps[p.Op] {
		return newUnsupportedError(fmt.Sprintf("comparison operator %q is not supported", p.Op))
	}

	if _, err := literalValue(p.Value, schema[idx].Type); err != nil {
		return newTypeError(p.Column, err.Error())
	}

	return nil
}

func validateAggregate(a *Aggregate, schema table.Schema) error {
	if !aggregateOps[a.Op] {
		return newUnsupportedError(fmt.Sprintf("aggregate %q is not supported", a.Op))
	}

	if a.Column == "" {
		if a.Op != "count" {
			return newUnsupportedError(fmt.Sprintf("aggregate %q requires a column", a.Op))
		}
	} else {
		idx := schema.Index(a.Column)
		if idx < 0 {
			return newSchemaError(a.Column)
		}
		switch a.Op {
		case "sum", "mean":
			if schema[idx].Type != table.TypeNumber {
				return newTypeError(a.Column, fmt.Sprintf("cannot %s a %s column", a.Op, schema[idx].Type))
			}
		}
	}

	if a.GroupBy != "" && schema.Index(a.GroupBy) < 0 {
		return newSchemaError(a.GroupBy)
	}

	return nil
}

// validateSort checks sort keys against the columns the expression outputs
func validateSort(expr *Expression, schema table.Schema) error {
	for _, k := range expr.Sort {
		if expr.Aggregate != nil {
			if k.Column == expr.Aggregate.GroupBy || k.Column == expr.Aggregate.ValueColumn() {
				continue
			}
			return newSchemaError(k.Column)
		}
		if schema.Index(k.Column) < 0 {
			return newSchemaError(k.Column)
		}
	}
	return nil
}

// literalValue coerces a JSON literal to a typed cell of the column type
func literalValue(raw interface{}, t table.Type) (table.Value, error) {
	if raw == nil {
		return table.NullValue(t), nil
	}

	switch t {
	case table.TypeString:
		if s, ok := raw.(string); ok {
			return table.StringValue(s), nil
		}
	case table.TypeNumber:
		switch v := raw.(type) {
		case float64:
			return table.NumberValue(v), nil
		case int:
			return table.NumberValue(float64(v)), nil
		}
	case table.TypeBoolean:
		if b, ok := raw.(bool); ok {
			return table.BooleanValue(b), nil
		}
	case table.TypeDatetime:
		if s, ok := raw.(string); ok {
			if v, ok := table.ParseDatetime(s); ok {
				return v, nil
			}
			return table.Value{}, fmt.Errorf("cannot parse %q as datetime", s)
		}
	}

	return table.Value{}, fmt.Errorf("literal %v is not a %s", raw, t)
}
