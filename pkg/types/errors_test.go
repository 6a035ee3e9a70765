package types

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"
)

func TestAPIError_Classification(t *testing.T) {
	tests := []struct {
		name        string
		err         *APIError
		transient   bool
		authExpired bool
	}{
		{
			name:      "server_error",
			err:       &APIError{Status: http.StatusInternalServerError, Op: "lock"},
			transient: true,
		},
		{
			name:      "bad_gateway",
			err:       &APIError{Status: http.StatusBadGateway, Op: "create"},
			transient: true,
		},
		{
			name:      "rate_limited",
			err:       &APIError{Status: http.StatusTooManyRequests, Op: "resolve", RetryAfter: 3 * time.Second},
			transient: true,
		},
		{
			name: "bad_request",
			err:  &APIError{Status: http.StatusBadRequest, Op: "resolve"},
		},
		{
			name:        "unauthorized",
			err:         &APIError{Status: http.StatusUnauthorized, Op: "lock"},
			authExpired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Transient(); got != tt.transient {
				t.Errorf("Transient() = %v, want %v", got, tt.transient)
			}
			if got := tt.err.AuthExpired(); got != tt.authExpired {
				t.Errorf("AuthExpired() = %v, want %v", got, tt.authExpired)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "api_500", err: &APIError{Status: 500}, want: true},
		{name: "api_400", err: &APIError{Status: 400}, want: false},
		{name: "wrapped_api_503", err: fmt.Errorf("call: %w", &APIError{Status: 503}), want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "wrapped_deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: true},
		{name: "conn_refused", err: &net.OpError{Op: "dial", Err: fmt.Errorf("connection refused")}, want: true},
		{name: "plain_error", err: fmt.Errorf("something else"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsAuthExpired(t *testing.T) {
	if !IsAuthExpired(fmt.Errorf("call: %w", &APIError{Status: http.StatusUnauthorized})) {
		t.Error("wrapped 401 not detected")
	}
	if IsAuthExpired(&APIError{Status: http.StatusForbidden}) {
		t.Error("403 misclassified as auth expiry")
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := map[State]bool{
		StateIdle:      false,
		StateCreated:   false,
		StateLocked:    false,
		StateResolving: false,
		StateResolved:  true,
		StateCancelled: true,
		StateFailed:    true,
	}

	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", state, got, want)
		}
	}
}
