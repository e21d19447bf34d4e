package domain

import (
	"errors"
	"fmt"
)

// Error is the typed failure returned by every core operation.
//
// Business-rule kinds (validation, invalid transition, not found, conflict)
// are raised before any write and leave the data model untouched. Only
// KindStoreUnavailable describes an infrastructure fault worth retrying.
type Error struct {
	// Kind identifies the error category.
	Kind ErrorKind

	// Message is a short human-readable explanation.
	Message string

	// Entity names the record type involved ("request", "candidate", ...).
	Entity string

	// ID identifies the record when known (numeric key or business code).
	ID string

	// Field names the offending input field for validation errors.
	Field string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorKind categorizes core errors.
type ErrorKind string

const (
	// KindValidation indicates malformed or missing input. The caller should re-prompt.
	KindValidation ErrorKind = "VALIDATION"

	// KindInvalidTransition indicates a state machine guard was violated.
	// The caller should refresh state; retrying is pointless.
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"

	// KindNotFound indicates a referenced entity does not exist.
	KindNotFound ErrorKind = "NOT_FOUND"

	// KindConflict indicates a duplicate unique key or a referenced record
	// that cannot be removed.
	KindConflict ErrorKind = "INTEGRITY_CONFLICT"

	// KindStoreUnavailable indicates a transient infrastructure fault.
	KindStoreUnavailable ErrorKind = "STORE_UNAVAILABLE"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	switch {
	case e.Entity != "" && e.ID != "":
		msg = fmt.Sprintf("%s (%s=%s)", msg, e.Entity, e.ID)
	case e.Field != "":
		msg = fmt.Sprintf("%s (field=%s)", msg, e.Field)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a core error, or "" if err is not one.
// Uses errors.As to handle wrapped errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsInvalidTransition reports whether err is a state machine guard violation.
func IsInvalidTransition(err error) bool { return KindOf(err) == KindInvalidTransition }

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsConflict reports whether err is an integrity conflict.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsRetryable reports whether the operation may succeed if retried with
// backoff. Business-rule rejections are never retryable.
func IsRetryable(err error) bool { return KindOf(err) == KindStoreUnavailable }

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, message string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: message,
		Field:   field,
	}
}

// NewTransitionError creates an invalid-transition error for a request.
func NewTransitionError(id string, action string, from RequestState) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot %s a request in state %s", action, from),
		Entity:  "request",
		ID:      id,
	}
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: entity + " not found",
		Entity:  entity,
		ID:      id,
	}
}

// NewConflictError creates an integrity conflict error.
func NewConflictError(entity, id, message string, cause error) *Error {
	return &Error{
		Kind:    KindConflict,
		Message: message,
		Entity:  entity,
		ID:      id,
		Err:     cause,
	}
}

// NewUnavailableError wraps a transient store failure.
func NewUnavailableError(op string, cause error) *Error {
	return &Error{
		Kind:    KindStoreUnavailable,
		Message: op + " failed",
		Err:     cause,
	}
}
