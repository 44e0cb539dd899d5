package api_client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// Error is a non-2xx answer from the backend.
type Error struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("backend returned status %d for %s %s", e.StatusCode, e.Method, e.Path)
}

// Detail extracts a human readable reason from the response body. The backend
// answers either {"detail": "..."} or a map of field errors.
func (e *Error) Detail() string {
	var payload map[string]any
	if err := json.Unmarshal(e.Body, &payload); err == nil && len(payload) > 0 {
		if detail, ok := payload["detail"].(string); ok && detail != "" {
			return detail
		}
		fields := make([]string, 0, len(payload))
		for field := range payload {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		parts := make([]string, 0, len(fields))
		for _, field := range fields {
			if msg := firstMessage(payload[field]); msg != "" {
				parts = append(parts, field+": "+msg)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "; ")
		}
	}

	body := strings.TrimSpace(string(e.Body))
	if body == "" || strings.HasPrefix(body, "<") {
		return http.StatusText(e.StatusCode)
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return body
}

func firstMessage(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []any:
		for _, item := range val {
			if msg := firstMessage(item); msg != "" {
				return msg
			}
		}
	}
	return ""
}

// StatusCode returns the backend status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func IsUnauthorized(err error) bool { return StatusCode(err) == http.StatusUnauthorized }

func IsNotFound(err error) bool { return StatusCode(err) == http.StatusNotFound }

// ErrorMessage renders err for an inline error banner.
func ErrorMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Detail()
	}
	return err.Error()
}
