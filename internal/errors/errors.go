package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a placesguard error code.
type ErrorCode string

const (
	ErrInvalidRequest         ErrorCode = "INVALID_REQUEST"         // 400
	ErrNotFound               ErrorCode = "NOT_FOUND"               // 404
	ErrBudgetExceeded         ErrorCode = "BUDGET_EXCEEDED"         // 429
	ErrKillSwitchActive       ErrorCode = "KILL_SWITCH_ACTIVE"      // 503
	ErrPersistenceUnavailable ErrorCode = "PERSISTENCE_UNAVAILABLE" // 503
	ErrNetworkFailure         ErrorCode = "NETWORK_FAILURE"         // 502
	ErrInternal               ErrorCode = "INTERNAL"                // 500
)

// GuardError represents a structured error with code, status, and details.
type GuardError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	cause   error
}

// Error implements the error interface.
func (e *GuardError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *GuardError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *GuardError {
	return &GuardError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing document.
func NewNotFound(key string) *GuardError {
	return &GuardError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("document not found: %s", key),
		Details: map[string]any{"key": key},
	}
}

// NewBudgetExceeded creates a 429 error when a daily ceiling is reached.
func NewBudgetExceeded(kind string, limit int) *GuardError {
	return &GuardError{
		Code:    ErrBudgetExceeded,
		Status:  429,
		Message: fmt.Sprintf("daily %s budget exhausted (limit %d)", kind, limit),
		Details: map[string]any{"kind": kind, "limit": limit},
	}
}

// NewKillSwitchActive creates a 503 error while paid calls are switched off.
func NewKillSwitchActive(reason string) *GuardError {
	e := &GuardError{
		Code:    ErrKillSwitchActive,
		Status:  503,
		Message: "places calls are disabled by kill switch",
	}
	if reason != "" {
		e.Details = map[string]any{"reason": reason}
	}
	return e
}

// NewPersistenceUnavailable wraps a store read or write failure.
func NewPersistenceUnavailable(op string, err error) *GuardError {
	return &GuardError{
		Code:    ErrPersistenceUnavailable,
		Status:  503,
		Message: fmt.Sprintf("persistence unavailable during %s", op),
		Details: map[string]any{"op": op},
		cause:   err,
	}
}

// NewNetworkFailure wraps a provider request failure.
func NewNetworkFailure(endpoint string, err error) *GuardError {
	msg := fmt.Sprintf("request to %s failed", endpoint)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &GuardError{
		Code:    ErrNetworkFailure,
		Status:  502,
		Message: msg,
		Details: map[string]any{"endpoint": endpoint},
		cause:   err,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *GuardError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &GuardError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error (or anything it wraps) is a GuardError with the given code.
func Is(err error, code ErrorCode) bool {
	var gErr *GuardError
	if stderrors.As(err, &gErr) {
		return gErr.Code == code
	}
	return false
}

// CodeOf returns the code of a GuardError, or ErrInternal for anything else.
func CodeOf(err error) ErrorCode {
	var gErr *GuardError
	if stderrors.As(err, &gErr) {
		return gErr.Code
	}
	return ErrInternal
}
