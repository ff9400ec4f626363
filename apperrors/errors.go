package apperrors

import "errors"

// Metadata keys shared across engine errors.
const (
	KeyCompetitionID  = "competition_id"
	KeyParticipantID  = "participant_id"
	KeySubmissionID   = "submission_id"
	KeyPhase          = "phase"
	KeyRequestedPhase = "requested_phase"
	KeyStatus         = "status"
	KeyPending        = "pending"
)

// Error is the engine error type with structured metadata.
type Error struct {
	Code     Code              // Machine-readable error code
	Message  string            // Human-readable message, safe to show to callers
	Metadata map[string]string // Context such as competition id and phase
	Cause    error             // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a simple error with a code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithMetadata creates an error carrying context for the caller.
func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
	}
}

// Wrap creates an error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithMetadata creates an error with both metadata and a cause.
func WrapWithMetadata(code Code, message string, metadata map[string]string, cause error) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Metadata: metadata,
		Cause:    cause,
	}
}

// CodeOf extracts the code from err, or CodeUnknown when err is not an *Error.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// Sentinels for errors.Is matching by code.
var (
	ErrInvalidTransition = New(CodeInvalidTransition, "invalid transition")
	ErrPhaseClosed       = New(CodePhaseClosed, "phase closed")
	ErrNotEligible       = New(CodeNotEligible, "not eligible")
	ErrAttemptExpired    = New(CodeAttemptExpired, "attempt expired")
	ErrInvalidReason     = New(CodeInvalidReason, "invalid reason")
	ErrInvalidInput      = New(CodeInvalidInput, "invalid input")
	ErrForbidden         = New(CodeForbidden, "forbidden")
	ErrNotFound          = New(CodeNotFound, "not found")
	ErrConflict          = New(CodeConflict, "conflict")
	ErrPersistence       = New(CodePersistence, "persistence failure")
)
