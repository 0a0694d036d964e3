package table

import (
	"fmt"
	"strconv"
	"time"
)

// Type identifies the data type of a column
type Type int

const (
	TypeString Type = iota
	TypeNumber
	TypeBoolean
	TypeDatetime
)

// String returns a human-readable name for the type
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeDatetime:
		return "datetime"
	default:
		return "unknown"
	}
}

// Value is a single typed cell. The Type tag selects which field carries
// the payload; Null values keep the column type but no payload.
type Value struct {
	Type Type
	Str  string
	Num  float64
	Bool bool
	Time time.Time
	Null bool
}

// StringValue creates a string value
func StringValue(s string) Value { return Value{Type: TypeString, Str: s} }

// NumberValue creates a number value
func NumberValue(f float64) Value { return Value{Type: TypeNumber, Num: f} }

// BooleanValue creates a boolean value
func BooleanValue(b bool) Value { return Value{Type: TypeBoolean, Bool: b} }

// DatetimeValue creates a datetime value
func DatetimeValue(t time.Time) Value { return Value{Type: TypeDatetime, Time: t} }

// NullValue creates a null value of the given type
func NullValue(t Type) Value { return Value{Type: t, Null: true} }

// String renders the value for display and row serialization
func (v Value) String() string {
	if v.Null {
		return ""
	}
	switch v.Type {
	case TypeString:
		return v.Str
	case TypeNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case TypeBoolean:
		return strconv.FormatBool(v.Bool)
	case TypeDatetime:
		return v.Time.Format(time.RFC3339)
	default:
		return ""
	}
}

// Compare orders two values of the same type. Returns -1, 0 or 1, or an
// error when the types differ. Null sorts before any non-null value.
func (v Value) Compare(other Value) (int, error) {
	if v.Type != other.Type {
		return 0, fmt.Errorf("cannot compare %s with %s", v.Type, other.Type)
	}

	switch {
	case v.Null && other.Null:
		return 0, nil
	case v.Null:
		return -1, nil
	case other.Null:
		return 1, nil
	}

	switch v.Type {
	case TypeString:
		switch {
		case v.Str < other.Str:
			return -1, nil
		case v.Str > other.Str:
			return 1, nil
		}
		return 0, nil
	case TypeNumber:
		switch {
		case v.Num < other.Num:
			return -1, nil
		case v.Num > other.Num:
			return 1, nil
		}
		return 0, nil
	case TypeBoolean:
		switch {
		case !v.Bool && other.Bool:
			return -1, nil
		case v.Bool && !other.Bool:
			return 1, nil
		}
		return 0, nil
	case TypeDatetime:
		switch {
		case v.Time.Before(other.Time):
			return -1, nil
		case v.Time.After(other.Time):
			return 1, nil
		}
		return 0, nil
	}

	return 0, fmt.Errorf("unsupported type %s", v.Type)
}

// Column is a named, typed column in a table schema
type Column struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Schema is the ordered column list of a table
type Schema []Column

// Index returns the position of the named column, or -1 when absent
func (s Schema) Index(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in schema order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// Table is an immutable, in-memory tabular dataset. Row count and column
// arity are fixed once loaded; mutations require a reload through the Store.
type Table struct {
	Name    string
	Columns Schema
	Rows    [][]Value
}

// NumRows returns the row count
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumColumns returns the column arity
func (t *Table) NumColumns() int {
	return len(t.Columns)
}

// SampleValues returns up to n rendered values from the named column,
// used to give the query planner a feel for the data
func (t *Table) SampleValues(column string, n int) []string {
	idx := t.Columns.Index(column)
	if idx < 0 {
		return nil
	}

	samples := make([]string, 0, n)
	for _, row := range t.Rows {
		if len(samples) >= n {
			break
		}
		if row[idx].Null {
			continue
		}
		samples = append(samples, row[idx].String())
	}
	return samples
}

// RowError reports a malformed input row. Malformed rows are collected
// and surfaced to the caller, never silently dropped.
type RowError struct {
	Line   int
	Reason string
}

// Error implements the error interface
func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}
