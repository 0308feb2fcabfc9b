package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so that clones and wraps compare
// equal to the predefined values with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Code == other.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// WrapAs wraps err using the code and status of a predefined error.
func WrapAs(err error, base *Error, message string) *Error {
	if message == "" {
		message = base.Message
	}
	return Wrap(err, base.Code, base.Status, message)
}

// Predefined errors for common scenarios.
var (
	ErrNotFound     = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation   = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal     = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss    = New("CACHE_MISS", http.StatusNotFound, "cache miss")

	ErrSessionNotFound = New("SESSION_NOT_FOUND", http.StatusUnauthorized, "session expired or unknown")
	ErrRoleUnknown     = New("ROLE_UNKNOWN", http.StatusForbidden, "no recognised role for this user")
	ErrEmptyScope      = New("EMPTY_SCOPE", http.StatusNotFound, "no direct or indirect reports found for this manager")
	ErrEmptyView       = New("EMPTY_VIEW", http.StatusOK, "no rows match the current selection")
	ErrNoChanges       = New("NO_CHANGES", http.StatusConflict, "there are no changes to save")
	ErrNothingToLock   = New("NOTHING_TO_LOCK", http.StatusConflict, "there are no rows to lock in the current view")
	ErrReconciliation  = New("RECONCILIATION_FAILED", http.StatusInternalServerError, "saving changes failed")
	ErrPersistence     = New("PERSISTENCE_FAILED", http.StatusBadGateway, "warehouse write failed")
	ErrEditConflict    = New("EDIT_CONFLICT", http.StatusConflict, "rows were modified by someone else since they were loaded")
	ErrEditForbidden   = New("EDIT_FORBIDDEN", http.StatusForbidden, "edit not permitted")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
