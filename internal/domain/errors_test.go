package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	if !errors.Is(ErrNotFound(), ErrNotFound()) {
		t.Error("two not-found errors should match")
	}
	if errors.Is(ErrNotFound(), ErrAlreadyExists()) {
		t.Error("different codes should not match")
	}

	// Matching survives fmt wrapping
	wrapped := fmt.Errorf("delete failed: %w", ErrNotFound())
	if !errors.Is(wrapped, ErrNotFound()) {
		t.Error("wrapped not-found should still match")
	}
	if !IsNotFound(wrapped) {
		t.Error("IsNotFound should see through fmt wrapping")
	}
}

func TestWrapPassesDomainErrorsThrough(t *testing.T) {
	err := Wrap(CodeDeleteError, "delete service", ErrNotFound())

	// The original code must survive, not be replaced by the operational one
	if CodeOf(err) != CodeNotFound {
		t.Errorf("CodeOf = %s, want %s", CodeOf(err), CodeNotFound)
	}
}

func TestWrapClassifiesUnexpectedErrors(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CodeSearchError, "search services", cause)

	if CodeOf(err) != CodeSearchError {
		t.Errorf("CodeOf = %s, want %s", CodeOf(err), CodeSearchError)
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error should unwrap to the cause")
	}
}

func TestCodeOfNonDomainError(t *testing.T) {
	if got := CodeOf(errors.New("boom")); got != "" {
		t.Errorf("CodeOf(plain error) = %q, want empty", got)
	}
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %q, want empty", got)
	}
}
