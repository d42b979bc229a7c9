package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Decoding error codes
const (
	ErrDepthExceeded  ErrorCode = "DEPTH_EXCEEDED"
	ErrParseFailed    ErrorCode = "PARSE_FAILED"
	ErrNoContent      ErrorCode = "NO_CONTENT"
	ErrNotCompletable ErrorCode = "NOT_COMPLETABLE"
	ErrMalformedJSON  ErrorCode = "MALFORMED_JSON"
	ErrShapeMismatch  ErrorCode = "SHAPE_MISMATCH"
)

// Upstream error codes
const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrUpstreamError  ErrorCode = "UPSTREAM_ERROR"
	ErrCancelled      ErrorCode = "CANCELLED"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Offset    int       `json:"offset,omitempty"`
	Retryable bool      `json:"retryable"`
	Provider  string    `json:"provider,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error carrying the same code. This lets
// package-level sentinels match annotated copies via errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause returns a copy of e with the given cause attached.
// Sentinels are shared, so the receiver is never mutated.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// WithOffset returns a copy of e annotated with a byte offset into the input.
func (e *Error) WithOffset(offset int) *Error {
	c := *e
	c.Offset = offset
	return &c
}

// WithRetryable returns a copy of e with the retryable flag set.
func (e *Error) WithRetryable(retryable bool) *Error {
	c := *e
	c.Retryable = retryable
	return &c
}

// WithProvider returns a copy of e tagged with the provider name.
func (e *Error) WithProvider(provider string) *Error {
	c := *e
	c.Provider = provider
	return &c
}

// AsError extracts an *Error from the chain of err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code anywhere in its chain.
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
