package internal

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewError(ErrorCodeNetwork, "metadata request failed", cause)

	if got, want := err.Error(), "metadata request failed: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}

	bare := NewError(ErrorCodeValidation, "bad input", nil)
	if bare.Error() != "bad input" {
		t.Errorf("Expected bare message, got %q", bare.Error())
	}
}

func TestHasCode(t *testing.T) {
	inner := NewError(ErrorCodeNetwork, "fetch failed", errors.New("timeout"))
	outer := NewError(ErrorCodeBadProvider, "bing metadata unavailable", inner)
	wrapped := fmt.Errorf("creating tile tree: %w", outer)

	tests := []struct {
		name string
		err  error
		code string
		want bool
	}{
		{"outer code", wrapped, ErrorCodeBadProvider, true},
		{"inner code", wrapped, ErrorCodeNetwork, true},
		{"absent code", wrapped, ErrorCodeFileSystem, false},
		{"plain error", errors.New("x"), ErrorCodeNetwork, false},
		{"nil error", nil, ErrorCodeNetwork, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasCode(tt.err, tt.code); got != tt.want {
				t.Errorf("HasCode() = %v, want %v", got, tt.want)
			}
		})
	}
}
