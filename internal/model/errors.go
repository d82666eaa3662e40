package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures across the pipeline.
type ErrorKind string

const (
	KindTransport      ErrorKind = "TRANSPORT_ERROR"
	KindMalformedJSON  ErrorKind = "MALFORMED_JSON"
	KindSchemaMismatch ErrorKind = "SCHEMA_MISMATCH"
	KindValidation     ErrorKind = "VALIDATION_ERROR"
	KindNotFound       ErrorKind = "NOT_FOUND"
)

// Error is a classified pipeline error. Field is set for validation errors
// (a JSON pointer such as "/email"); Detail carries the human-readable
// reason and, for parse failures, a bounded prefix of the offending text.
type Error struct {
	Kind   ErrorKind
	Op     string
	Field  string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Field != "" {
		msg += " at " + e.Field
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error with a formatted detail.
func NewError(kind ErrorKind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// WrapError classifies err under kind.
func WrapError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or "" when
// there is none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
