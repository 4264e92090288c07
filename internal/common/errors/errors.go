// Package errors provides standardized error handling for the query
// orchestration service.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Session lifecycle
	ErrCodeAuthFailed     ErrorCode = "AUTH_FAILED"
	ErrCodeConnectionLost ErrorCode = "CONNECTION_LOST"
	ErrCodeSessionBusy    ErrorCode = "SESSION_BUSY"

	// Query dispatch
	ErrCodeTriggerRejected      ErrorCode = "TRIGGER_REJECTED"
	ErrCodeUnsupportedQueryType ErrorCode = "UNSUPPORTED_QUERY_TYPE"

	// Result retrieval
	ErrCodePollTimeout     ErrorCode = "POLL_TIMEOUT"
	ErrCodeResultNotFound  ErrorCode = "RESULT_NOT_FOUND"
	ErrCodeMalformedResult ErrorCode = "MALFORMED_RESULT"

	// Storage
	ErrCodeStoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// CodeOf extracts the ErrorCode from err, or "" when err is not a
// StandardError.
func CodeOf(err error) ErrorCode {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// IsRetryable reports whether err is a StandardError marked retryable.
func IsRetryable(err error) bool {
	var se *StandardError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// ==========================
// 2. Error Constructors
// ==========================

// NewAuthFailedError creates a non-retryable login failure.
func NewAuthFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthFailed,
		Message:   "Registry rejected the credential",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConnectionLostError creates a retryable transport failure.
func NewConnectionLostError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeConnectionLost,
		Message:   "Registry transport failure",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionBusyError creates a non-retryable error for calls that
// arrive while a login attempt is still settling.
func NewSessionBusyError(op string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionBusy,
		Message:   "A connection attempt is already in progress",
		Details:   fmt.Sprintf("op: %s", op),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTriggerRejectedError creates a non-retryable dispatch rejection.
// The request never reached the external registry.
func NewTriggerRejectedError(reason string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTriggerRejected,
		Message:   "Query trigger rejected",
		Details:   reason,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnsupportedQueryTypeError creates a non-retryable rejection for
// query types outside the current capability set.
func NewUnsupportedQueryTypeError(queryType string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnsupportedQueryType,
		Message:   "Query type not supported by the registry",
		Details:   fmt.Sprintf("queryType: %s", queryType),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPollTimeoutError marks an accepted trigger whose answer never
// arrived within the attempt budget. Callers may re-trigger manually.
func NewPollTimeoutError(key string, attempts int) *StandardError {
	return &StandardError{
		Code:      ErrCodePollTimeout,
		Message:   "No result arrived within the attempt budget",
		Details:   fmt.Sprintf("key: %s, attempts: %d", key, attempts),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewResultNotFoundError signals a store miss for a key.
func NewResultNotFoundError(key string) *StandardError {
	return &StandardError{
		Code:      ErrCodeResultNotFound,
		Message:   "No stored result for key",
		Details:   fmt.Sprintf("key: %s", key),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMalformedResultError flags a payload that matched no recognized
// shape. The raw payload is preserved by the caller, never discarded.
func NewMalformedResultError(queryType string, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedResult,
		Message:   "Retrieved payload did not match any recognized shape",
		Details:   fmt.Sprintf("queryType: %s, %s", queryType, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError creates a retryable storage backend error.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Result store backend error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
