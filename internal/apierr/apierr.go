// Copyright 2025 Certen Protocol
//
// Package apierr carries the typed error kinds the scoring API renders as
// {error, message} JSON bodies (spec.md §7), the way the teacher's
// repositories carry sentinel not-found errors but generalized to the
// handful of kinds the HTTP layer needs to map to status codes.
package apierr

import "fmt"

// Kind is one of the error kinds from spec.md §7.
type Kind string

const (
	BadRequest   Kind = "BadRequest"
	Unauthorized Kind = "Unauthorized"
	NotFound     Kind = "NotFound"
	Validation   Kind = "Validation"
	Database     Kind = "Database"
	Internal     Kind = "Internal"
)

// StatusCode maps an error kind to the HTTP status the API surface returns.
func (k Kind) StatusCode() int {
	switch k {
	case BadRequest, Validation:
		return 400
	case Unauthorized:
		return 401
	case NotFound:
		return 404
	case Database, Internal:
		return 500
	default:
		return 500
	}
}

// Error is a typed API error carrying a kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts an *Error from err, defaulting to Internal if err isn't one.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	if apiErr, ok := err.(*Error); ok {
		return apiErr
	}
	return &Error{Kind: Internal, Message: err.Error(), Cause: err}
}
