// Package testutil provides testing utilities for the history-river services.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// CompletionsPath is the chat completion route relative to the API root.
const CompletionsPath = "/chat/completions"

// MockResponse defines the behavior for a mock upstream response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockOpenRouter is a configurable mock of an OpenAI-compatible API.
type MockOpenRouter struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount      int
	LastRequestHeader http.Header
	LastRequestBody   []byte
}

// NewMockOpenRouter creates a new mock server. Unconfigured paths answer
// with a fixed completion.
func NewMockOpenRouter() *MockOpenRouter {
	mock := &MockOpenRouter{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestHeader = r.Header.Clone()
		mock.LastRequestBody = body
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.Unlock()

		if exists {
			handler(w, r)
			return
		}
		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock API root, usable as a generator BaseURL.
func (m *MockOpenRouter) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOpenRouter) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockOpenRouter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestHeader = nil
	m.LastRequestBody = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOpenRouter) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOpenRouter) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			select {
			case <-time.After(resp.Delay):
			case <-r.Context().Done():
				return
			}
		}

		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if resp.Body != "" {
			w.Write([]byte(resp.Body))
		}
	})
}

// SetCompletionResponse configures the chat completion route.
func (m *MockOpenRouter) SetCompletionResponse(resp MockResponse) {
	m.SetResponse(CompletionsPath, resp)
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockOpenRouter) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// GetLastRequestBody returns the body of the most recent request.
func (m *MockOpenRouter) GetLastRequestBody() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestBody
}

// GetLastRequestHeader returns the headers of the most recent request.
func (m *MockOpenRouter) GetLastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.LastRequestHeader
}

func (m *MockOpenRouter) defaultHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(completionBody("默认回复。")))
}

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]any{
		"id":      "gen-test",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "deepseek/deepseek-v3.2-exp",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]string{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
	})
	return string(body)
}

// NewCompletionResponse creates a 200 OK completion carrying content.
func NewCompletionResponse(content string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       completionBody(content),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewNoChoicesResponse creates a 200 OK completion with an empty choice list.
func NewNoChoicesResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       `{"id":"gen-test","object":"chat.completion","choices":[]}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewErrorResponse creates an OpenAI-style error envelope with status.
func NewErrorResponse(status int, message string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       fmt.Sprintf(`{"error":{"message":%q,"type":"upstream_error","code":%d}}`, message, status),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
func NewRateLimitResponse() MockResponse {
	return NewErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded")
}

// NewServerErrorResponse creates a 502 response with a non-JSON body, as a
// gateway in front of the API would send.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusBadGateway,
		Body:       "bad gateway",
		Headers:    map[string]string{"Content-Type": "text/plain"},
	}
}

// NewMalformedResponse creates a 200 OK response whose body is not JSON.
func NewMalformedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       "{not json",
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
