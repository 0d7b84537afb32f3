package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthenticated is returned before any network I/O when no token is bound.
var ErrUnauthenticated = errors.New("not logged in")

// APIError is a non-2xx backend response. Message is the body's "message"
// field, shown to users verbatim when present.
type APIError struct {
	Status   int
	Message  string
	Endpoint string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: http %d: %s", e.Endpoint, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: http %d", e.Endpoint, e.Status)
}

// UserMessage returns the backend's message, or "" when it sent none.
func (e *APIError) UserMessage() string { return e.Message }

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsUnauthorized reports whether the backend rejected the token.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden
	}
	return errors.Is(err, ErrUnauthenticated)
}
