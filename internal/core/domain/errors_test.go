package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrExternalAccountTaken", ErrExternalAccountTaken, "external account already linked to another subject"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrInvalidCredentials", ErrInvalidCredentials, "invalid credentials"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("upsert mapping: %w", ErrExternalAccountTaken)
	if !errors.Is(wrapped, ErrExternalAccountTaken) {
		t.Error("expected wrapped error to match ErrExternalAccountTaken")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Error("wrapped error should not match ErrNotFound")
	}
}
