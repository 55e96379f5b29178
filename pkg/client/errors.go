package client

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("api key is required")

// maxMessageRunes bounds the message taken from a non-JSON error body.
const maxMessageRunes = 200

// APIError is returned for any non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Class      ErrorClass
	Message    string

	// Payload is the decoded JSON body, or the raw body text when the body
	// was not JSON.
	Payload any
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("ishmael %s error (status %d): %s", e.Class, e.StatusCode, e.Message)
}

// IsNotFound reports whether the API answered 404.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsUnauthorized reports whether the API rejected the key.
func (e *APIError) IsUnauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// IsRateLimited reports whether the API answered 429.
func (e *APIError) IsRateLimited() bool {
	return e.Class == ErrorClassRateLimit
}

// newAPIError derives the message from the payload's "error" or "message"
// field, else the start of a non-JSON body, else the status text.
func newAPIError(status int, body []byte, payload any, decoded bool) *APIError {
	message := http.StatusText(status)

	if decoded {
		if m, ok := payload.(map[string]any); ok {
			for _, field := range []string{"error", "message"} {
				if s := messageField(m[field]); s != "" {
					message = s
					break
				}
			}
		}
	} else {
		text := string(body)
		if len(bytes.TrimSpace(body)) > 0 {
			runes := []rune(text)
			if len(runes) > maxMessageRunes {
				runes = runes[:maxMessageRunes]
			}
			message = string(runes)
		}
		payload = text
	}

	return &APIError{
		StatusCode: status,
		Class:      classifyStatus(status),
		Message:    message,
		Payload:    payload,
	}
}

func messageField(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		if !s {
			return ""
		}
	}
	return fmt.Sprint(v)
}
