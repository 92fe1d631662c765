package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapErrorPreservesKindAndCause(t *testing.T) {
	cause := errors.New("disk full")
	err := WrapError(ErrStorageWrite, "save document bytes", cause)

	if !IsKind(err, ErrStorageWrite) {
		t.Fatalf("expected storage write kind, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected underlying cause to survive wrapping")
	}
	if !strings.Contains(err.Error(), "save document bytes") {
		t.Fatalf("expected operation context in message, got %q", err.Error())
	}
}

func TestWrapErrorNilCauseIsNil(t *testing.T) {
	if err := WrapError(ErrInvalidInput, "upload", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIsKindDistinguishesKinds(t *testing.T) {
	err := WrapError(ErrDocumentNotFound, "get document", errors.New("id missing"))
	if IsKind(err, ErrInvalidInput) {
		t.Fatalf("kinds must not cross-match")
	}
}

func TestIsTerminal(t *testing.T) {
	if StatusPending.IsTerminal() || StatusProcessing.IsTerminal() {
		t.Fatalf("pending and processing are not terminal")
	}
	if !StatusCompleted.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Fatalf("completed and failed are terminal")
	}
}
