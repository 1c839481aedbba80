// Package errcode defines the machine-checkable error taxonomy shared by every
// filingintel producer. A Code is what callers branch on; Message is the
// human-readable explanation and never carries stack traces or internal ids.
package errcode

import (
	"context"
	"errors"
	"fmt"
)

// Code identifies a failure class.
type Code string

const (
	NotFound   Code = "NOT_FOUND"
	Validation Code = "VALIDATION_ERROR"
	Parse      Code = "PARSE_ERROR"
	Timeout    Code = "TIMEOUT"
	RateLimit  Code = "RATE_LIMIT"
	// Partial is never returned as an error. It labels a successful window
	// pack that carries per-document failures.
	Partial Code = "PARTIAL"
	// Internal covers collaborator failures that fit no other class.
	Internal Code = "INTERNAL_ERROR"
)

// Error is a coded error. Err keeps the underlying cause for logs; it is not
// part of the caller-facing message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a coded error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns a coded error that keeps err as its cause.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// NotFoundf is shorthand for New(NotFound, ...).
func NotFoundf(format string, args ...any) *Error { return New(NotFound, format, args...) }

// Validationf is shorthand for New(Validation, ...).
func Validationf(format string, args ...any) *Error { return New(Validation, format, args...) }

// Parsef is shorthand for New(Parse, ...).
func Parsef(format string, args ...any) *Error { return New(Parse, format, args...) }

// From classifies any error into a coded error. Coded errors pass through,
// context deadlines become TIMEOUT, and everything else is INTERNAL_ERROR with
// a generic message so collaborator internals do not leak to callers.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(Timeout, err, "operation exceeded its deadline")
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(Timeout, err, "operation was cancelled")
	}
	return Wrap(Internal, err, "internal failure while processing the request")
}

// CodeOf returns the code of err, or "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return From(err).Code
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
