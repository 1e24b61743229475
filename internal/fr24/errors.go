package fr24

import (
	"errors"
	"net/http"
)

// RequestError wraps an upstream failure with enough context to
// classify it. A zero StatusCode means the request never completed
// (network error or timeout), which is always transient.
type RequestError struct {
	StatusCode int
	Err        error
}

func (e *RequestError) Error() string {
	if e.Err != nil {
		return "fr24: " + e.Err.Error()
	}
	return "fr24: request failed"
}

func (e *RequestError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is an explicit throttle signal.
// The caller parks the offending key for its cool-down period.
func IsRateLimited(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.StatusCode == http.StatusTooManyRequests
}

// IsTransient reports whether err should be retried next cycle with no
// state change: network failures, timeouts, and server-side errors.
func IsTransient(err error) bool {
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		return false
	}
	return reqErr.StatusCode == 0 || reqErr.StatusCode >= http.StatusInternalServerError
}
