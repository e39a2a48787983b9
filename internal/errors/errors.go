// Package errors provides the coded domain errors shared by the query engine,
// the toggle mutator and the transport layer.
//
// Services return typed errors and handlers map them to HTTP statuses:
//
//	if doc == nil {
//	    return apperrors.NotFoundf("video %s does not exist", id)
//	}
//
//	var appErr *apperrors.Error
//	if apperrors.As(err, &appErr) {
//	    respondError(w, appErr.HTTPStatus(), appErr.Message)
//	}
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions so callers need a single import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code is a machine-readable error code.
type Code string

const (
	CodeValidation           Code = "VALIDATION"
	CodeNotFound             Code = "NOT_FOUND"
	CodePreconditionNotFound Code = "PRECONDITION_NOT_FOUND"
	CodeForbidden            Code = "FORBIDDEN"
	CodeUnauthenticated      Code = "UNAUTHENTICATED"
	CodeSelfReference        Code = "SELF_REFERENCE"
	CodeAlreadyExists        Code = "ALREADY_EXISTS"
	CodeConflict             Code = "CONFLICT"
	CodeStore                Code = "STORE"
)

// HTTPStatus returns the HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation, CodeSelfReference:
		return http.StatusBadRequest
	case CodeNotFound, CodePreconditionNotFound:
		return http.StatusNotFound
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeAlreadyExists, CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error carrying the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// Sentinel errors for use with errors.Is().
var (
	ErrValidation           = &Error{Code: CodeValidation, Message: "validation error"}
	ErrNotFound             = &Error{Code: CodeNotFound, Message: "not found"}
	ErrPreconditionNotFound = &Error{Code: CodePreconditionNotFound, Message: "referenced resource not found"}
	ErrForbidden            = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrUnauthenticated      = &Error{Code: CodeUnauthenticated, Message: "authentication required"}
	ErrSelfReference        = &Error{Code: CodeSelfReference, Message: "relation target is the subject itself"}
	ErrAlreadyExists        = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrConflict             = &Error{Code: CodeConflict, Message: "conflict"}
	ErrStore                = &Error{Code: CodeStore, Message: "store failure"}
)

func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error carrying per-field messages.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// PreconditionNotFoundf reports that a parent resource a query depends on is absent.
func PreconditionNotFoundf(format string, args ...any) *Error {
	return &Error{Code: CodePreconditionNotFound, Message: fmt.Sprintf(format, args...)}
}

func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

func Unauthenticated(msg string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: msg}
}

func SelfReference(msg string) *Error {
	return &Error{Code: CodeSelfReference, Message: msg}
}

func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Store wraps an infrastructure failure. The message is never shown to clients.
func Store(err error, msg string) *Error {
	return &Error{Code: CodeStore, Message: msg, cause: err}
}

// Storef wraps an infrastructure failure with a formatted message.
func Storef(err error, format string, args ...any) *Error {
	return &Error{Code: CodeStore, Message: fmt.Sprintf(format, args...), cause: err}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// CodeOf returns the code of the first *Error in err's chain, or CodeStore
// for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStore
}
