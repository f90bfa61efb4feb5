package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"validation", Validation("amount", "Please enter a valid positive amount."), KindValidation},
		{"auth", &AuthError{Reason: ReasonExpired}, KindAuth},
		{"remote", &RemoteError{Status: 400, Message: "Insufficient funds"}, KindRemote},
		{"wrapped remote", fmt.Errorf("contribute: %w", &RemoteError{Status: 500}), KindRemote},
		{"network", &NetworkError{Op: "GET /groups", Cause: errors.New("connection refused")}, KindNetwork},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"canceled", fmt.Errorf("fetch: %w", context.Canceled), KindCanceled},
		{"realtime", fmt.Errorf("socket: %w", ErrRealtimeDisconnected), KindRealtime},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf: expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"remote verbatim", &RemoteError{Status: 400, Message: "Insufficient funds"}, "Insufficient funds"},
		{"remote without body", &RemoteError{Status: 502}, "Request failed (502)"},
		{"validation verbatim", Validation("amount", "Please enter a valid positive amount."), "Please enter a valid positive amount."},
		{"invalid credentials", &AuthError{Reason: ReasonInvalidCredentials}, "Invalid credentials"},
		{"auth with message", &AuthError{Reason: ReasonUnverifiedAccount, Message: "Verify first"}, "Verify first"},
		{"canceled is silent", context.Canceled, ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage: expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAuthErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := &AuthError{Reason: ReasonNetwork, Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("AuthError should unwrap to its cause")
	}
	if !IsAuth(err) {
		t.Error("IsAuth should be true for AuthError")
	}
}
