package model

import (
	"errors"
	"fmt"
	"testing"
)

func TestAPIErrorSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		sentinel error
		status   int
	}{
		{"configuration", NewConfigurationError("token missing"), ErrConfiguration, 500},
		{"network", NewNetworkError(errors.New("dial tcp: timeout")), ErrNetwork, 502},
		{"protocol", NewProtocolError("invalid merchandise id"), ErrProtocol, 502},
		{"cart not found", NewCartNotFoundError("gid://cart/1"), ErrCartNotFound, 404},
		{"validation", NewValidationError("quantity", "must be >= 1"), ErrInvalidRequest, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("errors.Is(%v, sentinel) = false", tt.err)
			}
			if tt.err.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", tt.err.StatusCode, tt.status)
			}
		})
	}
}

func TestAPIErrorUnwrapChain(t *testing.T) {
	// A network error wrapped by a caller must still match both the
	// sentinel and *APIError via errors.As.
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("fetching cart: %w", NewNetworkError(cause))

	if !errors.Is(wrapped, ErrNetwork) {
		t.Error("wrapped network error lost its sentinel")
	}

	var apiErr *APIError
	if !errors.As(wrapped, &apiErr) {
		t.Fatal("errors.As failed to find *APIError")
	}
	if apiErr.Code != "NETWORK_ERROR" {
		t.Errorf("Code = %q, want NETWORK_ERROR", apiErr.Code)
	}
}

func TestProtocolErrorNeverMatchesNetwork(t *testing.T) {
	err := NewProtocolError("bad query")
	if errors.Is(err, ErrNetwork) {
		t.Error("protocol error must not match ErrNetwork: it must never be retried")
	}
}
