package ucp

import (
	"errors"
	"fmt"
)

// ErrorCode is a machine-readable identifier for the specific failure.
type ErrorCode string

const (
	CodeInvalidArgument ErrorCode = "invalid_argument" // Caller-supplied identifier missing or malformed.
	CodeNotFound        ErrorCode = "not_found"        // No matching session, cart, or key.
	CodeInvalidState    ErrorCode = "invalid_state"    // Operation illegal for the session's current status; also concurrent-write conflicts.
	CodeCheckoutFailed  ErrorCode = "checkout_failed"  // Order placement failed in the host commerce system.
	CodeDuplicateKey    ErrorCode = "duplicate_key"    // Signing key id collision.
	CodeCorruptData     ErrorCode = "corrupt_data"     // Stored snapshot failed to decode.
)

// Error represents a structured UCP error payload. Errors are local to a
// single call; nothing in this package retries.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Param   *string   `json:"param,omitempty"`

	cause error
}

// Error makes *Error satisfy the stdlib error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the underlying cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

type errorOption func(*Error)

// WithOffendingParam sets the JSON path for the field that triggered the error.
func WithOffendingParam(jsonPath string) errorOption {
	return func(er *Error) {
		er.Param = &jsonPath
	}
}

// WithCause attaches the underlying error without flattening it into the message.
func WithCause(cause error) errorOption {
	return func(er *Error) {
		er.cause = cause
	}
}

// NewInvalidArgumentError builds an error for missing or malformed caller input.
func NewInvalidArgumentError(message string, opts ...errorOption) *Error {
	return newError(CodeInvalidArgument, message, opts...)
}

// NewNotFoundError builds an error for a missing session, cart, or key.
func NewNotFoundError(message string, opts ...errorOption) *Error {
	return newError(CodeNotFound, message, opts...)
}

// NewInvalidStateError builds a conflict error for an operation that is
// illegal in the session's current status.
func NewInvalidStateError(message string, opts ...errorOption) *Error {
	return newError(CodeInvalidState, message, opts...)
}

// NewCheckoutFailedError builds an error for a failed order placement,
// carrying the host system's failure as the cause.
func NewCheckoutFailedError(message string, cause error, opts ...errorOption) *Error {
	return newError(CodeCheckoutFailed, message, append([]errorOption{WithCause(cause)}, opts...)...)
}

// NewDuplicateKeyError builds an error for a signing key id collision.
func NewDuplicateKeyError(message string, opts ...errorOption) *Error {
	return newError(CodeDuplicateKey, message, opts...)
}

// NewCorruptDataError builds an error for a stored snapshot that failed to
// decode. Treated as a data-integrity incident by callers.
func NewCorruptDataError(message string, cause error, opts ...errorOption) *Error {
	return newError(CodeCorruptData, message, append([]errorOption{WithCause(cause)}, opts...)...)
}

// newError builds a typed error payload.
func newError(code ErrorCode, message string, opts ...errorOption) *Error {
	errPayload := &Error{
		Code:    code,
		Message: message,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(errPayload)
	}
	return errPayload
}

// CodeOf extracts the UCP error code from err, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var ucpErr *Error
	if errors.As(err, &ucpErr) {
		return ucpErr.Code
	}
	return ""
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsInvalidState reports whether err carries CodeInvalidState.
func IsInvalidState(err error) bool { return CodeOf(err) == CodeInvalidState }
