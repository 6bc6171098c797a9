package pglisten

import (
	"errors"
	"fmt"
)

// Error represents a pglisten error with categorization.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes for pglisten operations.
const (
	// ErrCodeConnect indicates the initial handshake failed. Not retried.
	ErrCodeConnect = "CONNECT_ERROR"

	// ErrCodeReconnectExhausted indicates reconnection gave up after hitting
	// the retry limit or the retry timeout.
	ErrCodeReconnectExhausted = "RECONNECT_EXHAUSTED"

	// ErrCodeDecode indicates a notification payload could not be parsed.
	ErrCodeDecode = "DECODE_ERROR"

	// ErrCodeQuery indicates a LISTEN, UNLISTEN or NOTIFY statement failed.
	ErrCodeQuery = "QUERY_ERROR"

	// ErrCodeState indicates the operation is not allowed in the current session state.
	ErrCodeState = "STATE_ERROR"

	// ErrCodeClosed indicates the session has been closed.
	ErrCodeClosed = "CLOSED"

	// ErrCodeNoData indicates no data was found.
	ErrCodeNoData = "NO_DATA"

	// ErrCodeValidation indicates validation failed.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeConfiguration indicates invalid configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// ErrCodeDatabase indicates a journal database operation failed.
	ErrCodeDatabase = "DATABASE_ERROR"
)

// Common errors.
var (
	// ErrNoData is returned when a query returns no results.
	// This is not necessarily an error condition in all cases.
	ErrNoData = &Error{
		Code:    ErrCodeNoData,
		Message: "no data found",
	}

	// ErrClosed is returned by operations invoked after Close.
	ErrClosed = &Error{
		Code:    ErrCodeClosed,
		Message: "session is closed",
	}

	// ErrNotConnected is wrapped into query errors issued while the session
	// has no live connection.
	ErrNotConnected = errors.New("no live connection")
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// IsCode reports whether err is (or wraps) a *Error with the given code.
func IsCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsNoData checks if an error is ErrNoData.
func IsNoData(err error) bool {
	if IsCode(err, ErrCodeNoData) {
		return true
	}
	return errors.Is(err, ErrNoData)
}
