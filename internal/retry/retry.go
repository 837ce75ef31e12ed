package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

// Policy bounds how often and how patiently an operation is retried.
type Policy struct {
	MaxRetries int           // additional attempts after the first failure
	BaseDelay  time.Duration // delay before the first retry, doubled on each subsequent retry
}

// Do runs op, retrying transient failures with exponential backoff and jitter.
func Do[T any](ctx context.Context, p Policy, logger *slog.Logger, op func(context.Context) (T, error)) (T, error) {
	result, err := op(ctx)
	if err == nil {
		return result, nil
	}

	var zero T
	if !IsRetryable(err) {
		return zero, err
	}

	lastErr := err
	for attempt := 1; attempt <= p.MaxRetries; attempt++ {
		delay := p.backoffDelay(attempt, lastErr)

		logger.Warn("retrying after transient error",
			"attempt", attempt,
			"max_retries", p.MaxRetries,
			"delay", delay,
			"error", lastErr,
		)

		select {
		case <-ctx.Done():
			return zero, fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}

		result, err = op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRetryable(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, lastErr
}

// backoffDelay computes the delay for a given attempt with ±30% jitter.
// If the error includes a Retry-After duration (HTTP 429), that takes precedence.
func (p Policy) backoffDelay(attempt int, err error) time.Duration {
	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return httpErr.RetryAfter
	}

	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}

	jitter := float64(delay) * 0.3
	return time.Duration(float64(delay) + (rand.Float64()*2-1)*jitter)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRetryable returns true if the error represents a transient failure worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// Context cancellation: never retry.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var perm *permanentError
	if errors.As(err, &perm) {
		return false
	}

	var httpErr *model.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == 429 || httpErr.StatusCode >= 500 {
			return true
		}
		// 4xx (not 429) is not retryable.
		return false
	}

	// Non-HTTP errors (network, DNS) are retryable.
	return true
}

// RetrySource is a decorator that retries transient search failures before
// giving up on the wrapped source.
type RetrySource struct {
	inner  model.JobSource
	policy Policy
	logger *slog.Logger
}

// NewRetrySource wraps a JobSource with retry logic.
func NewRetrySource(inner model.JobSource, policy Policy, logger *slog.Logger) *RetrySource {
	return &RetrySource{
		inner:  inner,
		policy: policy,
		logger: logger.With("source", inner.Name()),
	}
}

func (s *RetrySource) Name() string { return s.inner.Name() }

// Search delegates to the wrapped source, retrying on transient errors.
func (s *RetrySource) Search(ctx context.Context, q model.Query) ([]model.Posting, error) {
	return Do(ctx, s.policy, s.logger, func(ctx context.Context) ([]model.Posting, error) {
		return s.inner.Search(ctx, q)
	})
}
