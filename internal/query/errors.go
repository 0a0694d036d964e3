package query

import (
	"errors"
	"fmt"
)

// Kind categorizes query failures. Failures are structured results the
// caller inspects to decide between re-planning and surfacing; they are
// never raised as panics.
type Kind string

const (
	// KindSchema indicates a reference to a column the table does not have
	KindSchema Kind = "schema_error"

	// KindType indicates an operation applied to an incompatible column type
	KindType Kind = "type_error"

	// KindUnsupported indicates a construct outside the restricted grammar
	KindUnsupported Kind = "unsupported_operator"

	// KindLimit indicates the row or result budget was exhausted
	KindLimit Kind = "limit_exceeded"

	// KindTimeout indicates the execution time budget was exhausted
	KindTimeout Kind = "timeout"
)

// Error is a structured query failure
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Column  string `json:"column,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: column %q: %s", e.Kind, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches errors by kind
func (e *Error) Is(target error) bool {
	if qe, ok := target.(*Error); ok {
		return e.Kind == qe.Kind
	}
	return false
}

func newSchemaError(column string) *Error {
	return &Error{Kind: KindSchema, Column: column, Message: "unknown column"}
}

func newTypeError(column, message string) *Error {
	return &Error{Kind: KindType, Column: column, Message: message}
}

func newUnsupportedError(message string) *Error {
	return &Error{Kind: KindUnsupported, Message: message}
}

func newLimitError(message string) *Error {
	return &Error{Kind: KindLimit, Message: message}
}

func newTimeoutError(message string) *Error {
	return &Error{Kind: KindTimeout, Message: message}
}

// KindOf extracts the failure kind from an error, or "" for foreign errors
func KindOf(err error) Kind {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}
