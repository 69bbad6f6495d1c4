// Package apperr defines the terminal, user-visible error taxonomy shared by
// all use cases and mapped onto HTTP status codes by the API layer.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

type Code string

const (
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeInvalidPayload    Code = "INVALID_PAYLOAD"
	CodeInvalidParams     Code = "INVALID_PARAMS"
	CodeRateLimited       Code = "RATE_LIMITED"
	CodeNotFound          Code = "NOT_FOUND"
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodeInternal          Code = "INTERNAL"
)

type Error struct {
	Code    Code
	Message string
	// RetryAfter is set only for CodeRateLimited.
	RetryAfter time.Duration
	// Err is the wrapped cause, not exposed to callers over the wire.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{
		Code:       CodeRateLimited,
		Message:    "rate limit exceeded",
		RetryAfter: retryAfter,
	}
}

// CodeOf extracts the taxonomy code from any error, treating unclassified
// errors as internal.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
