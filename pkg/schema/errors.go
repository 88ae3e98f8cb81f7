package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeStore      = "STORE_ERROR"
	ErrCodeExpression = "EXPRESSION_ERROR"
	ErrCodeRender     = "RENDER_ERROR"
	ErrCodeCache      = "CACHE_ERROR"
)

// Error is the structured error type returned by flowlens collaborators.
// The layout and metrics engines themselves never fail.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *Error) WithNode(nodeID string) *Error {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// IsCode reports whether err is an *Error carrying the given code.
func IsCode(err error, code string) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
