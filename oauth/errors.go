package oauth

import (
	"errors"
	"fmt"
)

// Reason codes for callback failures. Each maps to a distinct, actionable
// message on the frontend, so they are part of the API surface.
const (
	ReasonInvalidState     = "invalid_state"
	ReasonInvalidCode      = "invalid_code"
	ReasonRedirectMismatch = "redirect_mismatch"
	ReasonScopeMissing     = "scope_missing"
	ReasonNoIntegration    = "no_integration"
)

// CallbackError is a callback failure with a machine-readable reason.
type CallbackError struct {
	Reason string
	Err    error
}

func (e *CallbackError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth callback %s: %v", e.Reason, e.Err)
	}

	return "oauth callback " + e.Reason
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

func callbackErr(reason string, err error) *CallbackError {
	return &CallbackError{Reason: reason, Err: err}
}

// ReasonOf extracts the reason code, empty for other errors.
func ReasonOf(err error) string {
	var cbErr *CallbackError
	if errors.As(err, &cbErr) {
		return cbErr.Reason
	}

	return ""
}
