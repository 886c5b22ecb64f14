package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// StatusError represents a non-success HTTP response that is not handled
// by the caller (anything other than 200, 404 and 429).
type StatusError struct {
	Message    string
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Message, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.StatusCode)
}

// NewStatusError creates a StatusError with a message derived from the status class
func NewStatusError(statusCode int, url string) *StatusError {
	var message string
	switch {
	case statusCode == http.StatusNotFound:
		message = "Resource not found"
	case statusCode >= 500:
		message = "Remote server error"
	case statusCode >= 400:
		message = "Request rejected"
	default:
		message = "Unexpected response status"
	}

	return &StatusError{
		Message:    message,
		StatusCode: statusCode,
		URL:        url,
	}
}

// IsStatusError checks if error is a StatusError
func IsStatusError(err error) bool {
	var statusErr *StatusError
	return stdErrors.As(err, &statusErr)
}

// StatusCode returns the HTTP status carried by err, or 0 if it has none.
func StatusCode(err error) int {
	var statusErr *StatusError
	if stdErrors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
