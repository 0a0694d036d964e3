package query

import (
	"github.com/csvchat/csvchat/internal/table"
)

// ResultKind describes the shape of a query result
type ResultKind int

const (
	// ResultScalar is a single typed value
	ResultScalar ResultKind = iota

	// ResultColumn is a single-column sequence of values
	ResultColumn

	// ResultTable is a small multi-column table
	ResultTable
)

// Result is the immutable outcome of executing an Expression. Provenance
// (the expression that produced it) travels with the values.
type Result struct {
	Kind    ResultKind
	Scalar  table.Value
	Columns table.Schema
	Rows    [][]table.Value
	Expr    *Expression
}

// NumRows returns the row count for column/table results, 1 for scalars
func (r *Result) NumRows() int {
	if r.Kind == ResultScalar {
		return 1
	}
	return len(r.Rows)
}

// IsScalar reports whether the result is a single value
func (r *Result) IsScalar() bool {
	return r.Kind == ResultScalar
}

// scalarResult wraps a single value with provenance
func scalarResult(v table.Value, expr *Expression) *Result {
	return &Result{Kind: ResultScalar, Scalar: v, Expr: expr}
}

// shapedResult collapses a projected table into the narrowest result kind:
// one cell becomes a scalar, one column becomes a sequence.
func shapedResult(columns table.Schema, rows [][]table.Value, expr *Expression) *Result {
	if len(columns) == 1 && len(rows) == 1 {
		return scalarResult(rows[0][0], expr)
	}
	if len(columns) == 1 {
		return &Result{Kind: ResultColumn, Columns: columns, Rows: rows, Expr: expr}
	}
	return &Result{Kind: ResultTable, Columns: columns, Rows: rows, Expr: expr}
}
