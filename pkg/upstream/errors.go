package upstream

import (
	"errors"
	"fmt"
	"net"
)

// RateLimitError represents a 429 from the upstream source, carrying the
// Retry-After hint when one was supplied.
type RateLimitError struct {
	StatusCode int
	RetryAfter string
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter != "" {
		return fmt.Sprintf("rate limit exceeded (status %d), retry after: %s", e.StatusCode, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (status %d): %s", e.StatusCode, e.Message)
}

func (e *RateLimitError) IsRateLimit() bool {
	return true
}

// APIError represents a non-429 upstream failure.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// Transient reports whether the error is worth retrying: rate limits and
// server-side failures are, client errors are not.
func (e *APIError) Transient() bool {
	return e.StatusCode >= 500
}

// IsTransient classifies an upstream error for retry purposes. Rate
// limits, server-side failures, and transport-level network errors are
// transient; client errors are not. Cancelled callers are caught by the
// retry loop's context select, not here.
func IsTransient(err error) bool {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return true
	}
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Transient()
	}
	// http.Client errors arrive as *url.Error, which satisfies
	// net.Error. Connection resets, refused connections, and timeouts
	// all land here.
	var ne net.Error
	return errors.As(err, &ne)
}
