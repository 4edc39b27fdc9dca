// Package apperr defines the error kinds returned by the service layer.
//
// Services return *Error values; the request layer maps Kind to a status code
// and only ever shows Message to the caller.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the caller.
type Kind int

const (
	KindUnexpected Kind = iota
	KindInvalidRequest
	KindInvalidTransition
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindInsufficientStock
	KindConflict
	KindUnavailable
	KindCanceled
)

var kindNames = map[Kind]string{
	KindUnexpected:        "unexpected",
	KindInvalidRequest:    "invalid_request",
	KindInvalidTransition: "invalid_transition",
	KindNotFound:          "not_found",
	KindForbidden:         "forbidden",
	KindUnauthorized:      "unauthorized",
	KindInsufficientStock: "insufficient_stock",
	KindConflict:          "conflict",
	KindUnavailable:       "unavailable",
	KindCanceled:          "canceled",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a classified error. Err carries the internal cause and is never
// shown to callers.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is. An invalid transition is also an invalid request.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindInvalidTransition && t.Kind == KindInvalidRequest
}

// Sentinels for errors.Is.
var (
	ErrUnexpected        = &Error{Kind: KindUnexpected}
	ErrInvalidRequest    = &Error{Kind: KindInvalidRequest}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
	ErrCanceled          = &Error{Kind: KindCanceled}
)

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func InvalidRequest(format string, args ...any) *Error {
	return newf(KindInvalidRequest, format, args...)
}

func InvalidTransition(format string, args ...any) *Error {
	return newf(KindInvalidTransition, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newf(KindForbidden, format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newf(KindUnauthorized, format, args...)
}

func InsufficientStock(format string, args ...any) *Error {
	return newf(KindInsufficientStock, format, args...)
}

// Conflict wraps a uniqueness violation behind a caller-safe message.
func Conflict(message string, cause error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: cause}
}

// Unavailable marks a retryable failure such as a lock or statement timeout.
func Unavailable(cause error) *Error {
	return &Error{Kind: KindUnavailable, Message: "service temporarily unavailable, retry the request", Err: cause}
}

// Canceled marks work abandoned because the caller went away.
func Canceled(cause error) *Error {
	return &Error{Kind: KindCanceled, Message: "request canceled", Err: cause}
}

// Unexpected hides cause behind a generic message.
func Unexpected(cause error) *Error {
	return &Error{Kind: KindUnexpected, Message: "unexpected error, check server logs", Err: cause}
}

// KindOf reports the kind of err, or KindUnexpected for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

// MessageOf returns the caller-safe message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "unexpected error, check server logs"
}
