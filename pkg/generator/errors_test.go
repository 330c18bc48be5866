package generator

import (
	"errors"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "with status",
			err:      &Error{Class: ErrorClassStatus, StatusCode: 401, Message: "No auth credentials found"},
			expected: "generator status error (status 401): No auth credentials found",
		},
		{
			name:     "without status",
			err:      &Error{Class: ErrorClassNetwork, Message: "connection refused"},
			expected: "generator network error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := &Error{Class: ErrorClassNetwork, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
}

func TestError_Retryable(t *testing.T) {
	tests := []struct {
		err      *Error
		expected bool
	}{
		{&Error{Class: ErrorClassNetwork}, true},
		{&Error{Class: ErrorClassStatus, StatusCode: 429}, true},
		{&Error{Class: ErrorClassStatus, StatusCode: 500}, true},
		{&Error{Class: ErrorClassStatus, StatusCode: 503}, true},
		{&Error{Class: ErrorClassStatus, StatusCode: 400}, false},
		{&Error{Class: ErrorClassStatus, StatusCode: 402}, false},
		{&Error{Class: ErrorClassPayload}, false},
	}

	for _, tt := range tests {
		if got := tt.err.Retryable(); got != tt.expected {
			t.Errorf("Retryable(%s/%d) = %v, want %v", tt.err.Class, tt.err.StatusCode, got, tt.expected)
		}
	}
}

func TestClassifyError_Fallback(t *testing.T) {
	err := classifyError(errors.New("something odd"))
	if err.Class != ErrorClassNetwork {
		t.Errorf("Class = %q, want network", err.Class)
	}
}
