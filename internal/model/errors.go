package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownField is wrapped by MissingFieldError when the field name is not a
// drill-run column at all.
var ErrUnknownField = errors.New("unknown field")

// DataLoadError is fatal at startup: the source is missing required columns
// or no row could be coerced.
type DataLoadError struct {
	Source  string
	Missing []string
	Err     error
}

func (e *DataLoadError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("load %s: missing required columns: %s", e.Source, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("load %s: %v", e.Source, e.Err)
}

func (e *DataLoadError) Unwrap() error { return e.Err }

// FieldCoercionError reports a single row whose field could not be parsed.
// The row is dropped; loading continues.
type FieldCoercionError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *FieldCoercionError) Error() string {
	return fmt.Sprintf("row %d: column %s: cannot coerce %q: %v", e.Row, e.Column, e.Value, e.Err)
}

func (e *FieldCoercionError) Unwrap() error { return e.Err }

// MissingFieldError is returned by aggregates that reference a column the
// row subset does not carry.
type MissingFieldError struct {
	Field Field
	Err   error
}

func (e *MissingFieldError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("missing field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("missing field %q", e.Field)
}

func (e *MissingFieldError) Unwrap() error { return e.Err }

// AuthFailure is the non-fatal outcome of a rejected credential.
type AuthFailure struct {
	Reason string
	Err    error
}

func (e *AuthFailure) Error() string {
	if e.Err != nil {
		return e.Reason + ": " + e.Err.Error()
	}
	return e.Reason
}

func (e *AuthFailure) Unwrap() error { return e.Err }
