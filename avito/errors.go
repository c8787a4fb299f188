package avito

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-retryable marketplace response (or a retryable one that
// survived every attempt).
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("marketplace: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}

	return fmt.Sprintf("marketplace: status=%d message=%s", e.StatusCode, e.Message)
}

func statusIs(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// IsUnauthorized reports whether the marketplace rejected the access token.
func IsUnauthorized(err error) bool { return statusIs(err, http.StatusUnauthorized) }

// IsNotFound reports a missing remote resource (unpublished listing, unknown booking).
func IsNotFound(err error) bool { return statusIs(err, http.StatusNotFound) }

// IsConflict reports a state conflict, e.g. cancelling an already-paid booking.
func IsConflict(err error) bool { return statusIs(err, http.StatusConflict) }

// IsRateLimited reports whether every retry was throttled.
func IsRateLimited(err error) bool { return statusIs(err, http.StatusTooManyRequests) }
