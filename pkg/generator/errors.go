package generator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("generator API key not configured, set OPENROUTER_API_KEY")

// ErrorClass represents a classification of generator failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents transport failures and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassStatus represents non-2xx responses from the upstream.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassPayload represents a 2xx response whose body could not be decoded.
	ErrorClassPayload ErrorClass = "payload"
)

// Error is a generator failure with upstream context.
type Error struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("generator %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("generator %s error: %s", e.Class, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the request may succeed.
// Rate limits, 5xx responses and transport failures are retryable.
func (e *Error) Retryable() bool {
	switch e.Class {
	case ErrorClassNetwork:
		return true
	case ErrorClassStatus:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	default:
		return false
	}
}

// classifyError converts a go-openai error into an *Error.
func classifyError(err error) *Error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &Error{
			Class:      ErrorClassStatus,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := http.StatusText(reqErr.HTTPStatusCode)
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &Error{
			Class:      ErrorClassStatus,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
			Err:        err,
		}
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &Error{Class: ErrorClassPayload, Message: "malformed response body", Err: err}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Class: ErrorClassNetwork, Message: "request timed out", Err: err}
	}
	return &Error{Class: ErrorClassNetwork, Message: err.Error(), Err: err}
}
