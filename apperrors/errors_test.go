package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := WithMetadata(CodeInvalidTransition, "cannot move from PUBLISHED to ONGOING", map[string]string{
		KeyPhase:          "PUBLISHED",
		KeyRequestedPhase: "ONGOING",
	})
	wrapped := fmt.Errorf("force start: %w", err)

	if !errors.Is(wrapped, ErrInvalidTransition) {
		t.Fatal("expected wrapped error to match ErrInvalidTransition")
	}
	if errors.Is(wrapped, ErrPhaseClosed) {
		t.Fatal("did not expect a match on a different code")
	}
	if got := CodeOf(wrapped); got != CodeInvalidTransition {
		t.Fatalf("CodeOf = %q, want %q", got, CodeInvalidTransition)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(CodePersistence, "apply transition", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
	if err.Error() != "apply transition: disk full" {
		t.Fatalf("Error() = %q", err.Error())
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != CodeUnknown {
		t.Fatalf("CodeOf = %q, want %q", got, CodeUnknown)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeForbidden, http.StatusForbidden},
		{CodeNotEligible, http.StatusForbidden},
		{CodeInvalidTransition, http.StatusConflict},
		{CodePhaseClosed, http.StatusConflict},
		{CodeAttemptExpired, http.StatusGone},
		{CodeInvalidReason, http.StatusBadRequest},
		{CodePersistence, http.StatusServiceUnavailable},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}
