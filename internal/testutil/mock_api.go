// Package testutil provides a mock Ishmael Insights API for tests.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/ishmael-client/pkg/ratelimit"
)

// APIPrefix is the path prefix the mock serves under.
const APIPrefix = "/api/v1"

// MockResponse defines the behavior for a mock endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockAPI is a configurable mock Ishmael Insights server for testing.
// Handlers are registered by path relative to APIPrefix, e.g. "/teams".
type MockAPI struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	requestCount      int
	conditionalCount  int
	lastRequestHeader http.Header
	queries           map[string][]url.Values
}

// NewMockAPI creates and starts a mock server.
func NewMockAPI() *MockAPI {
	mock := &MockAPI{
		handlers: make(map[string]http.HandlerFunc),
		queries:  make(map[string][]url.Values),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, APIPrefix)

		mock.mu.Lock()
		mock.requestCount++
		mock.lastRequestHeader = r.Header.Clone()
		mock.queries[path] = append(mock.queries[path], r.URL.Query())
		if r.Header.Get("If-None-Match") != "" || r.Header.Get("If-Modified-Since") != "" {
			mock.conditionalCount++
		}
		handler, exists := mock.handlers[path]
		mock.mu.Unlock()

		if !strings.HasPrefix(r.URL.Path, APIPrefix+"/") {
			WriteJSON(w, http.StatusNotFound, map[string]any{"error": "unknown route"})
			return
		}

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the server base URL without the API prefix.
func (m *MockAPI) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockAPI) Close() {
	m.server.Close()
}

// Reset clears all tracking state.
func (m *MockAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount = 0
	m.conditionalCount = 0
	m.lastRequestHeader = nil
	m.queries = make(map[string][]url.Values)
}

// SetHandler sets a custom handler for a path.
func (m *MockAPI) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockAPI) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
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

// RequestCount returns the number of requests received.
func (m *MockAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// ConditionalCount returns the number of conditional requests received.
func (m *MockAPI) ConditionalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conditionalCount
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockAPI) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader.Clone()
}

// Queries returns the query of every request made to path, in order.
func (m *MockAPI) Queries(path string) []url.Values {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]url.Values, len(m.queries[path]))
	copy(out, m.queries[path])
	return out
}

func (m *MockAPI) defaultHandler(w http.ResponseWriter, r *http.Request) {
	setQuotaHeaders(w, 100, 60)

	if r.Header.Get("If-None-Match") != "" {
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", `"default-etag"`)
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func setQuotaHeaders(w http.ResponseWriter, remaining, reset int) {
	w.Header().Set(ratelimit.HeaderRemaining, strconv.Itoa(remaining))
	w.Header().Set(ratelimit.HeaderReset, strconv.Itoa(reset))
}

// NewItemsHandler serves items as a paginated list honoring limit, offset and
// cursor (an opaque offset). next_cursor is null on the last page.
func NewItemsHandler(items []any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil || limit <= 0 {
			limit = 50
		}
		offset, _ := strconv.Atoi(q.Get("offset"))
		if c := q.Get("cursor"); c != "" {
			offset, _ = strconv.Atoi(c)
		}
		if offset > len(items) {
			offset = len(items)
		}
		end := min(offset+limit, len(items))

		var next any
		if end < len(items) {
			next = strconv.Itoa(end)
		}

		setQuotaHeaders(w, 100, 60)
		WriteJSON(w, http.StatusOK, map[string]any{
			"items":       items[offset:end],
			"count":       end - offset,
			"next_cursor": next,
		})
	}
}

// NewHealthyResponse creates a standard 200 OK response with quota headers.
func NewHealthyResponse(data string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       data,
		Headers: map[string]string{
			ratelimit.HeaderRemaining: "100",
			ratelimit.HeaderReset:     "60",
			"ETag":                    `"test-etag-123"`,
			"Cache-Control":           "max-age=300",
			"Content-Type":            "application/json; charset=utf-8",
		},
	}
}

// NewNotModifiedResponse creates a 304 Not Modified response.
func NewNotModifiedResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotModified,
		Headers: map[string]string{
			ratelimit.HeaderRemaining: "100",
			ratelimit.HeaderReset:     "60",
			"Cache-Control":           "max-age=300",
		},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response with an
// exhausted quota.
func NewRateLimitResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error": "Rate limit exceeded"}`,
		Headers: map[string]string{
			ratelimit.HeaderRemaining: "0",
			ratelimit.HeaderReset:     "30",
			"Content-Type":            "application/json; charset=utf-8",
		},
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error": "Internal server error"}`,
		Headers: map[string]string{
			ratelimit.HeaderRemaining: "95",
			ratelimit.HeaderReset:     "60",
			"Content-Type":            "application/json; charset=utf-8",
		},
	}
}

// NewConditionalHandler answers 304 when If-None-Match equals etag and a
// full response otherwise. Both carry a short max-age.
func NewConditionalHandler(etag string, data string, maxAge time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setQuotaHeaders(w, 100, 60)
		w.Header().Set("Cache-Control", "max-age="+strconv.Itoa(int(maxAge.Seconds())))

		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", etag)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(data))
	}
}
