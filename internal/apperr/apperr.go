// Package apperr defines the typed error taxonomy shared across the service.
// All business-rule failures are returned as *Error values with a stable code;
// nothing in the core panics or swallows an error.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies an error for callers and for HTTP status mapping.
type Code string

const (
	CodeValidation           Code = "validation"
	CodeIllegalTransition    Code = "illegal_transition"
	CodeReferentialIntegrity Code = "referential_integrity"
	CodeConflict             Code = "conflict"
	CodeNotFound             Code = "not_found"
	CodeUnauthorized         Code = "unauthorized"
	CodeInvalidInput         Code = "invalid_input"
	CodeInternal             Code = "internal"
)

// Violation is one unmet requirement or rule breach, tagged with the field
// (or checklist item / distribution line) it applies to.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is the service-wide error type. Validation errors carry the complete
// list of violations, never just the first.
type Error struct {
	Code       Code        `json:"code"`
	Message    string      `json:"message"`
	Violations []Violation `json:"violations,omitempty"`
	cause      error
}

func (e *Error) Error() string {
	if len(e.Violations) > 0 {
		msgs := make([]string, 0, len(e.Violations))
		for _, v := range e.Violations {
			msgs = append(msgs, v.Message)
		}
		return fmt.Sprintf("%s: %s", e.Message, strings.Join(msgs, "; "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// Validation builds a CodeValidation error carrying every violation.
func Validation(violations []Violation) *Error {
	return &Error{
		Code:       CodeValidation,
		Message:    "validation failed",
		Violations: violations,
	}
}

// IllegalTransition reports an action attempted from a state/role combination
// that is not in the transition table.
func IllegalTransition(message string) *Error {
	return New(CodeIllegalTransition, message)
}

// ReferentialIntegrity reports an inconsistent reference, such as a folder
// parent assignment that would create a cycle.
func ReferentialIntegrity(message string) *Error {
	return New(CodeReferentialIntegrity, message)
}

// Conflict reports a stale-snapshot write; callers should reload and retry.
func Conflict(message string) *Error {
	return New(CodeConflict, message)
}

// NotFound reports a missing resource.
func NotFound(resource, id string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s with id %s not found", resource, id))
}

// InvalidInput reports a malformed request field.
func InvalidInput(field, message string) *Error {
	return &Error{
		Code:       CodeInvalidInput,
		Message:    "invalid input",
		Violations: []Violation{{Field: field, Message: message}},
	}
}

// CodeOf extracts the code from any error; non-*Error values map to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// AsError extracts the *Error from err, or nil.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}
