// Package apperr defines the error taxonomy shared by the registries, the
// authorization policy and the HTTP gateway, and renders it as the uniform
// response envelope.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Kind classifies a failure independently of transport.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// HTTPStatus maps a Kind to its response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FieldError describes a single invalid or missing input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the concrete error type returned by services.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string, fields ...FieldError) *Error {
	return &Error{Kind: KindValidation, Message: msg, Fields: fields}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Unavailable marks a retryable store or collaborator failure.
func Unavailable(err error) *Error {
	return &Error{Kind: KindUnavailable, Message: "Service temporarily unavailable. Please retry.", Err: err}
}

// Internal wraps an unexpected failure. The cause is logged, never rendered.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "An unexpected error occurred.", Err: err}
}

// KindOf reports the Kind of err, treating anything unclassified as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given Kind.
func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// Fields collects field errors while validating a request.
type Fields []FieldError

func (f *Fields) Add(field, msg string) {
	*f = append(*f, FieldError{Field: field, Message: msg})
}

// Text checks that v is valid UTF-8 of at most max characters, adding
// tooLong when it is longer. It reports whether v passed.
func (f *Fields) Text(field, v string, max int, tooLong string) bool {
	if !utf8.ValidString(v) {
		f.Add(field, field+" contains invalid characters")
		return false
	}
	if utf8.RuneCountInString(v) > max {
		f.Add(field, tooLong)
		return false
	}
	return true
}

// Err returns a validation error listing every collected field, or nil.
func (f Fields) Err() error {
	if len(f) == 0 {
		return nil
	}
	msgs := make([]string, len(f))
	for i, fe := range f {
		msgs[i] = fe.Message
	}
	return Validation(strings.Join(msgs, ", "), f...)
}
