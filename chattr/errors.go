package chattr

import (
	"errors"
	"fmt"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	// Protocol errors (from server error responses)
	ErrorUnknown ErrorCode = iota
	ErrorUnsupportedVersion
	ErrorUnauthorized
	ErrorInvalidMessage
	ErrorBadRequest
	ErrorRateLimited
	ErrorInternalServer

	// Client-side errors
	ErrorConnection
	ErrorDisconnected
	ErrorTimeout
	ErrorInvalidConfig
	ErrorNotConnected
	ErrorSerialization

	// ErrorFetch covers a failed history page fetch. The caller may
	// retry the same page; pagination state is left untouched.
	ErrorFetch

	// ErrorFetchInFlight rejects a page request while one is pending.
	ErrorFetchInFlight

	// ErrorScopeMismatch marks an event that arrived for a conversation
	// other than the joined one. Such events are dropped, never surfaced.
	ErrorScopeMismatch

	// ErrorDuplicateJoin marks a join for the already-joined
	// conversation. Treated as a no-op, never surfaced.
	ErrorDuplicateJoin
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorUnsupportedVersion:
		return "unsupported_version"
	case ErrorUnauthorized:
		return "unauthorized"
	case ErrorInvalidMessage:
		return "invalid_message"
	case ErrorBadRequest:
		return "bad_request"
	case ErrorRateLimited:
		return "rate_limited"
	case ErrorInternalServer:
		return "internal_error"
	case ErrorConnection:
		return "connection_error"
	case ErrorDisconnected:
		return "disconnected"
	case ErrorTimeout:
		return "timeout"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorSerialization:
		return "serialization_error"
	case ErrorFetch:
		return "fetch_error"
	case ErrorFetchInFlight:
		return "fetch_in_flight"
	case ErrorScopeMismatch:
		return "scope_mismatch"
	case ErrorDuplicateJoin:
		return "duplicate_join"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// ParseErrorCode converts a protocol error code string to ErrorCode.
func ParseErrorCode(code string) ErrorCode {
	switch code {
	case "unsupported_version":
		return ErrorUnsupportedVersion
	case "unauthorized":
		return ErrorUnauthorized
	case "invalid_message":
		return ErrorInvalidMessage
	case "bad_request":
		return ErrorBadRequest
	case "rate_limited":
		return ErrorRateLimited
	case "internal_error":
		return ErrorInternalServer
	default:
		return ErrorUnknown
	}
}

// ChattrError is a structured error with code and context.
type ChattrError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *ChattrError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *ChattrError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is interface for error comparison.
func (e *ChattrError) Is(target error) bool {
	t, ok := target.(*ChattrError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new ChattrError with the given code and message.
func NewError(code ErrorCode, message string) *ChattrError {
	return &ChattrError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a ChattrError.
func WrapError(code ErrorCode, message string, err error) *ChattrError {
	return &ChattrError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// FromProtocolError converts a protocol Error to ChattrError.
func FromProtocolError(e *Error) *ChattrError {
	if e == nil {
		return nil
	}
	return &ChattrError{
		Code:    ParseErrorCode(e.Code),
		Message: e.Msg,
	}
}

// IsProtocolError checks if an error is a protocol error (from server).
func IsProtocolError(err error) bool {
	if err == nil {
		return false
	}
	var ce *ChattrError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code >= ErrorUnsupportedVersion && ce.Code <= ErrorInternalServer
}

// IsConnectionError checks if an error is a connection-related error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var ce *ChattrError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == ErrorConnection || ce.Code == ErrorDisconnected || ce.Code == ErrorTimeout
}

// IsFetchError checks if an error came from a history page fetch.
func IsFetchError(err error) bool {
	if err == nil {
		return false
	}
	var ce *ChattrError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == ErrorFetch || ce.Code == ErrorFetchInFlight
}
