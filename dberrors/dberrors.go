// Package dberrors defines the error categories returned to callers of the
// engine (spec §6, §7). Every per-statement failure is classified into one
// of these codes rather than surfaced as an opaque Go error.
package dberrors

import (
	"errors"
	"fmt"
)

// Code classifies a statement failure.
type Code string

const (
	Syntax            Code = "Syntax"
	SchemaMissing     Code = "SchemaMissing"
	ColumnMissing     Code = "ColumnMissing"
	NotNullViolation  Code = "NotNullViolation"
	UniqueViolation   Code = "UniqueViolation"
	FKViolation       Code = "FKViolation"
	LockConflict      Code = "LockConflict"
	Timeout           Code = "Timeout"
	TypeMismatch      Code = "TypeMismatch"
	Internal          Code = "Internal"
)

// Error is the classified error type every component in the pipeline
// returns. Line/Position are 1-based and only meaningful for Syntax errors
// where the offending token could be located in the source text.
type Error struct {
	Code     Code
	Message  string
	Line     int
	Position int
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d, position %d)", e.Code, e.Message, e.Line, e.Position)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New builds a classified error with no source position.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// NewAt builds a classified error carrying a 1-based line/column.
func NewAt(code Code, line, pos int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Line: line, Position: pos}
}

// As extracts a *Error from err or its wrapped chain, if any, via errors.As.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
