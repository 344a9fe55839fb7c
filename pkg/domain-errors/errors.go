// Package domainerrors provides the stable error taxonomy exposed by the
// order engine. Every failure a caller can observe maps to one of the codes
// below; storage or transport detail never leaks past the service boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine-readable error kind.
type Code string

const (
	// Cart validation.
	CodeInvalidQuantity Code = "invalid_quantity"
	CodeItemNotFound    Code = "item_not_found"
	CodeEmptyCart       Code = "empty_cart"

	// Order creation and lifecycle.
	CodeEmptyOrder        Code = "empty_order"
	CodeInvalidReference  Code = "invalid_reference"
	CodeInsufficientStock Code = "insufficient_stock"
	CodeInvalidTransition Code = "invalid_transition"
	CodeTerminalState     Code = "terminal_state"
	CodeInvalidState      Code = "invalid_state"

	// Shared resource facts.
	CodeNotFound    Code = "not_found"
	CodeConflict    Code = "conflict"
	CodeTimeout     Code = "timeout"
	CodeUnavailable Code = "unavailable"

	// Edge concerns.
	CodeForbidden    Code = "forbidden"
	CodeUnauthorized Code = "unauthorized"
	CodeBadRequest   Code = "bad_request"
	CodeInternal     Code = "internal"
)

// Error carries a code plus a human-readable message and optionally wraps a
// cause for logging. The cause is never rendered to callers.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. If err is already
// a domain error its code is preserved so a more specific classification made
// closer to the failure is not overwritten on the way up.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	var de *Error
	if errors.As(err, &de) {
		return &Error{Code: de.Code, Message: message, cause: err}
	}
	return &Error{Code: code, Message: message, cause: err}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// HasCode is an alias of Is kept for call-site readability in conditionals.
func HasCode(err error, code Code) bool { return Is(err, code) }

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-safe message from err. Unclassified errors
// yield a generic message so internals stay hidden.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}

// ToHTTPStatus maps an error code onto an HTTP status for the transport edge.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidQuantity, CodeEmptyCart, CodeEmptyOrder, CodeInvalidReference, CodeBadRequest:
		return http.StatusBadRequest
	case CodeItemNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeInsufficientStock, CodeConflict:
		return http.StatusConflict
	case CodeInvalidTransition, CodeTerminalState, CodeInvalidState:
		return http.StatusUnprocessableEntity
	case CodeForbidden:
		return http.StatusForbidden
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
