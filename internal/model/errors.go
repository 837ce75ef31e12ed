package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrAllSourcesFailed  = errors.New("all sources failed")
	ErrDeliveryFailed    = errors.New("digest delivery failed")
	ErrUnknownToken      = errors.New("unknown control token")
	ErrUserNotConfigured = errors.New("resume or sample letter missing")
	ErrGenerationFailed  = errors.New("letter generation failed")
	ErrCycleInFlight     = errors.New("a search is already running for this user")
	ErrUserNotFound      = errors.New("user not found")
	ErrNoPreferences     = errors.New("job preferences not set")
)

// SourceFailure records why one source produced no results in a cycle.
type SourceFailure struct {
	Source string
	Reason string
}

func (f SourceFailure) Error() string {
	return fmt.Sprintf("source %s: %s", f.Source, f.Reason)
}

// HTTPError wraps an HTTP status code so retry logic can inspect it.
type HTTPError struct {
	StatusCode int
	RetryAfter time.Duration // from Retry-After header, zero if absent
	Err        error
}

func (e *HTTPError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// ErrNotFound is returned by stores for a missing posting or control.
var ErrNotFound = errors.New("not found")
