package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsCarryCodes(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		code int
	}{
		{"not found", NotFound("conversation not found"), http.StatusNotFound},
		{"forbidden", Forbidden("nope"), http.StatusForbidden},
		{"validation", Validation("bad input"), http.StatusBadRequest},
		{"conflict", Conflict("duplicate"), http.StatusConflict},
		{"internal", Internal("boom", errors.New("cause")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Fatalf("Code = %d, want %d", tt.err.Code, tt.code)
			}
			if Code(tt.err) != tt.code {
				t.Fatalf("Code(err) = %d, want %d", Code(tt.err), tt.code)
			}
			if Message(tt.err) != tt.err.Message {
				t.Fatalf("Message(err) = %q, want %q", Message(tt.err), tt.err.Message)
			}
		})
	}
}

func TestCodeAndMessageDefaultForForeignErrors(t *testing.T) {
	err := errors.New("driver: bad connection")
	if Code(err) != http.StatusInternalServerError {
		t.Fatalf("Code = %d, want 500", Code(err))
	}
	if Message(err) != "internal server error" {
		t.Fatalf("Message = %q", Message(err))
	}
	if Code(nil) != http.StatusInternalServerError {
		t.Fatalf("Code(nil) = %d, want 500", Code(nil))
	}
}

func TestUnwrapAndErrorsAs(t *testing.T) {
	cause := errors.New("row not found")
	err := NotFound("message not found").Wrap(cause)

	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause should survive errors.Is")
	}

	wrapped := fmt.Errorf("handling event: %w", err)
	if Code(wrapped) != http.StatusNotFound {
		t.Fatalf("Code through wrapping = %d, want 404", Code(wrapped))
	}
	if !IsNotFound(wrapped) {
		t.Fatal("IsNotFound should see through wrapping")
	}
	if IsForbidden(wrapped) {
		t.Fatal("IsForbidden should not match a NotFound error")
	}
}

func TestErrorString(t *testing.T) {
	plain := Forbidden("no access")
	if got := plain.Error(); got != "[403] no access" {
		t.Fatalf("Error() = %q", got)
	}
	withCause := Internal("query failed", errors.New("timeout"))
	if got := withCause.Error(); got != "[500] query failed: timeout" {
		t.Fatalf("Error() = %q", got)
	}
}
