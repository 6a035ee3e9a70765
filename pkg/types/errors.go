package types

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// APIError represents a structured error from the Twitch Helix API.
type APIError struct {
	Status  int    // HTTP status code
	Code    string // API error code when present
	Message string // Human-readable error message
	Op      string // Operation that failed (create, lock, resolve, cancel)

	// RetryAfter is how long the API asked us to wait before retrying.
	// Set from the Ratelimit-Reset header on 429 responses.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s failed: %s (%s, status %d)", e.Op, e.Message, e.Code, e.Status)
	}

	return fmt.Sprintf("%s failed: %s (status %d)", e.Op, e.Message, e.Status)
}

// Transient reports whether the call may succeed if retried.
func (e *APIError) Transient() bool {
	return e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

// AuthExpired reports whether the bearer credential was rejected.
func (e *APIError) AuthExpired() bool {
	return e.Status == http.StatusUnauthorized
}

// IsTransient reports whether err is worth retrying with backoff: a timeout,
// a 5xx or a rate-limit response. Terminal business-rule violations (4xx)
// return false.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Connection-level failures (refused, reset) are transient.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsAuthExpired reports whether err indicates an expired bearer credential.
func IsAuthExpired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.AuthExpired()
}
