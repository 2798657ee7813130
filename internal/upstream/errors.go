package upstream

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrConfigurationMissing is returned when upstream mode is requested without a URL or credentials.
	ErrConfigurationMissing = errors.New("upstream url or credentials not configured")

	// ErrUnauthorized marks a resource call still rejected with 401 after one token refresh.
	ErrUnauthorized = errors.New("unauthorized after token refresh")
)

// TransportError is a network-level failure (DNS, TLS, connection reset, ...).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthenticationError is a non-2xx answer from the /auth endpoint.
type AuthenticationError struct {
	Status int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed: %d %s", e.Status, http.StatusText(e.Status))
}

// ResourceError is a non-2xx answer from a resource endpoint.
type ResourceError struct {
	Op     string
	Status int
	Body   string
}

func (e *ResourceError) Error() string {
	msg := fmt.Sprintf("failed to %s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap lets callers match a persistent 401 with errors.Is(err, ErrUnauthorized).
func (e *ResourceError) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// MalformedResponseError is a 2xx answer whose body does not decode into the expected shape.
type MalformedResponseError struct {
	Op  string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
