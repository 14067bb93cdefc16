package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`

	// UpstreamStatus is the origin's HTTP status when Code is UPSTREAM_ERROR.
	UpstreamStatus int `json:"upstream_status,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.UpstreamStatus != 0 {
		msg = fmt.Sprintf("%s (origin returned %d)", msg, e.UpstreamStatus)
	}
	return msg
}

// IsNotFound reports whether the resource was absent.
func (e *APIError) IsNotFound() bool {
	return e.Code == "NOT_FOUND" || e.StatusCode == http.StatusNotFound
}

// IsInvalidURL reports whether the server rejected the image URL.
func (e *APIError) IsInvalidURL() bool {
	return e.Code == "INVALID_URL"
}

// IsUpstream reports whether the origin failed to serve the image.
func (e *APIError) IsUpstream() bool {
	return e.Code == "UPSTREAM_ERROR"
}

// IsCanceled reports whether the retrieval was cancelled while queued.
func (e *APIError) IsCanceled() bool {
	return e.Code == "CANCELED"
}

// IsUnavailable reports whether the server is shutting down.
func (e *APIError) IsUnavailable() bool {
	return e.Code == "UNAVAILABLE" || e.StatusCode == http.StatusServiceUnavailable
}

func decodeError(status int, body []byte) error {
	var apiErr APIError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		apiErr.StatusCode = status
		return &apiErr
	}
	return &APIError{
		StatusCode: status,
		Message:    strings.TrimSpace(string(body)),
	}
}
