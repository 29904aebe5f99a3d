// Package errors provides standardized error handling for the insight
// query pipeline.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Transport failures: the remote service could not be reached or the
	// call itself failed. Always fatal to the current attempt.
	ErrCodeTransportFailed ErrorCode = "TRANSPORT_FAILED"

	// Remote application errors: the service answered with an explicit
	// error envelope. The message is forwarded verbatim.
	ErrCodeRemoteError ErrorCode = "REMOTE_ERROR"

	// Schema soft failures: a structurally successful response missing a
	// required field. Retried only during session creation.
	ErrCodeSessionCreateFailed ErrorCode = "SESSION_CREATE_FAILED"
	ErrCodeSubmitFailed        ErrorCode = "SUBMIT_FAILED"
	ErrCodeEmptyResponse       ErrorCode = "EMPTY_RESPONSE"

	// Terminal remote statuses. Never retried.
	ErrCodeQueryFailed ErrorCode = "QUERY_FAILED"

	// Poll loop exhausted its allowed attempts.
	ErrCodePollTimeout ErrorCode = "POLL_TIMEOUT"

	// Cache layer: demo mode found no fallback file for the key.
	ErrCodeNoFallback ErrorCode = "NO_FALLBACK"
)

// StandardError is the internal error type carried through the pipeline.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates a StandardError with the given code and message.
func New(code ErrorCode, message string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Retryable: retryable(code),
		Timestamp: time.Now().UTC(),
	}
}

// Newf creates a StandardError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *StandardError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap creates a StandardError that records the underlying error in Details.
func Wrap(code ErrorCode, message string, err error) *StandardError {
	se := New(code, message)
	if err != nil {
		se.Details = err.Error()
	}
	return se
}

func retryable(code ErrorCode) bool {
	switch code {
	case ErrCodeTransportFailed, ErrCodeSessionCreateFailed:
		return true
	default:
		return false
	}
}

// CodeOf extracts the ErrorCode from an error, or INTERNAL_ERROR when the
// error did not originate in this package.
func CodeOf(err error) ErrorCode {
	if se, ok := err.(*StandardError); ok {
		return se.Code
	}
	return "INTERNAL_ERROR"
}
