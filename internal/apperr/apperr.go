// Package apperr defines the service error taxonomy and its HTTP mapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure.
type Code string

const (
	CodeInvalidArgument Code = "invalid_argument"
	CodeInvalidRange    Code = "invalid_range"
	CodeOverlapConflict Code = "overlap_conflict"
	CodeNotFound        Code = "not_found"
	CodeConflict        Code = "conflict"
	CodeUnauthorized    Code = "unauthorized"
	CodeForbidden       Code = "forbidden"
	CodeRateLimited     Code = "rate_limited"
	CodeStorage         Code = "storage_error"
)

// Error carries a failure class, a caller-safe message and the HTTP status
// the transport layer should respond with. The wrapped cause, if any, is for
// logs only and must never reach a response body.
type Error struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithDetails attaches a detail entry and returns the error for chaining.
func (e *Error) WithDetails(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

func newError(code Code, status int, message string) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: status}
}

// InvalidArgument reports malformed or missing request input.
func InvalidArgument(message string) *Error {
	return newError(CodeInvalidArgument, http.StatusBadRequest, message)
}

// InvalidRange reports an interval whose start is not before its end.
func InvalidRange(message string) *Error {
	return newError(CodeInvalidRange, http.StatusBadRequest, message)
}

// OverlapConflict reports an interval colliding with an existing one.
func OverlapConflict(message string) *Error {
	return newError(CodeOverlapConflict, http.StatusConflict, message)
}

// NotFound reports a missing record, including records the caller does not own.
func NotFound(message string) *Error {
	return newError(CodeNotFound, http.StatusNotFound, message)
}

// Conflict reports a persistence-level uniqueness violation.
func Conflict(message string) *Error {
	return newError(CodeConflict, http.StatusConflict, message)
}

// Unauthorized reports missing or invalid credentials.
func Unauthorized(message string) *Error {
	return newError(CodeUnauthorized, http.StatusUnauthorized, message)
}

// Forbidden reports an authenticated caller lacking access.
func Forbidden(message string) *Error {
	return newError(CodeForbidden, http.StatusForbidden, message)
}

// RateLimited reports a caller exceeding its request budget.
func RateLimited(message string) *Error {
	return newError(CodeRateLimited, http.StatusTooManyRequests, message)
}

// Storage wraps an unexpected persistence failure. The cause is logged, the
// message returned to callers stays generic.
func Storage(message string, cause error) *Error {
	e := newError(CodeStorage, http.StatusInternalServerError, message)
	e.cause = cause
	return e
}

// From extracts the service error from err, or classifies it as a storage
// failure when it is not one.
func From(err error) *Error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	return Storage("internal error", err)
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var se *Error
	return errors.As(err, &se) && se.Code == code
}
