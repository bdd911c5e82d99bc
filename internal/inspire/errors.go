package inspire

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by the INSPIRE client.
var (
	// ErrNotFound indicates the record was not found.
	ErrNotFound = errors.New("not found in INSPIRE")

	// ErrRateLimited indicates the upstream rejected the call with 429.
	ErrRateLimited = errors.New("INSPIRE rate limit exceeded")

	// ErrNetwork indicates a transport-level failure.
	ErrNetwork = errors.New("network error communicating with INSPIRE")

	// ErrInvalidResponse indicates an unexpected or unparseable API response.
	ErrInvalidResponse = errors.New("invalid response from INSPIRE")
)

// APIError represents an HTTP-level error from the INSPIRE API.
type APIError struct {
	StatusCode int
	Message    string
	Recid      string // for context in record-related errors
}

func (e *APIError) Error() string {
	if e.Recid != "" {
		return fmt.Sprintf("INSPIRE API error (status %d): %s (record %s)", e.StatusCode, e.Message, e.Recid)
	}
	return fmt.Sprintf("INSPIRE API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// IsCancelled returns true if the error is caller cancellation, which
// must propagate unmodified rather than be treated as a fetch failure.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
