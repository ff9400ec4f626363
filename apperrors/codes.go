// Package apperrors provides the typed errors returned by the olympiad engine.
package apperrors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Lifecycle errors
	CodeInvalidTransition Code = "INVALID_TRANSITION"
	CodePhaseClosed       Code = "PHASE_CLOSED"

	// Attempt errors
	CodeNotEligible    Code = "NOT_ELIGIBLE"
	CodeAttemptExpired Code = "ATTEMPT_EXPIRED"
	CodeInvalidReason  Code = "INVALID_REASON"

	// Request errors
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeForbidden    Code = "FORBIDDEN"

	// Storage errors
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodePersistence Code = "PERSISTENCE"
)

// HTTPStatus maps the code to the status used by the HTTP surface.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeForbidden, CodeNotEligible:
		return http.StatusForbidden
	case CodeInvalidTransition, CodePhaseClosed, CodeConflict:
		return http.StatusConflict
	case CodeAttemptExpired:
		return http.StatusGone
	case CodeInvalidReason, CodeInvalidInput:
		return http.StatusBadRequest
	case CodePersistence:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the caller may retry the same request unchanged.
func (c Code) Retryable() bool {
	return c == CodePersistence || c == CodeConflict
}
