// mock_backend.go - Mock factory REST API for testing
package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockResponse is what the mock answers for one route.
type MockResponse struct {
	Status  int
	Message string
	Data    any
	// Raw, when set, is written verbatim instead of an envelope.
	Raw string
	// Delay holds the response back.
	Delay time.Duration
	// Gate, when set, holds the response until it is closed.
	Gate chan struct{}
}

// RecordedRequest is one request received by the mock.
type RecordedRequest struct {
	Method string
	Path   string
	Token  string
	Body   []byte
}

// MockBackend serves the {data, message} envelope API over httptest.
type MockBackend struct {
	Server *httptest.Server

	responses map[string]MockResponse // "METHOD /path" -> response
	requests  []RecordedRequest
	mu        sync.RWMutex
}

// NewMockBackend starts a mock server. Unknown routes answer 404.
func NewMockBackend() *MockBackend {
	m := &MockBackend{responses: make(map[string]MockResponse)}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL is the base URL of the mock.
func (m *MockBackend) URL() string {
	return m.Server.URL
}

// Close shuts the server down.
func (m *MockBackend) Close() {
	m.Server.Close()
}

func (m *MockBackend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.requests = append(m.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Token:  r.Header.Get("token"),
		Body:   body,
	})
	resp, ok := m.responses[r.Method+" "+r.URL.Path]
	m.mu.Unlock()

	if !ok {
		resp = MockResponse{Status: http.StatusNotFound, Message: "Not Found"}
	}
	if resp.Gate != nil {
		select {
		case <-resp.Gate:
		case <-r.Context().Done():
			return
		}
	}
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if resp.Raw != "" {
		io.WriteString(w, resp.Raw)
		return
	}
	json.NewEncoder(w).Encode(map[string]any{"data": resp.Data, "message": resp.Message})
}

// Test Helper Methods

// SetResponse registers the answer for method and path.
func (m *MockBackend) SetResponse(method, path string, resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[method+" "+path] = resp
}

// Requests returns a copy of everything received so far.
func (m *MockBackend) Requests() []RecordedRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RecordedRequest(nil), m.requests...)
}

// RequestCount returns the number of requests received
func (m *MockBackend) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// Clear forgets recorded requests and responses
func (m *MockBackend) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = make(map[string]MockResponse)
	m.requests = nil
}
