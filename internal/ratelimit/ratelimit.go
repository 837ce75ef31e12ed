package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

// SourceRateLimiter enforces a minimum delay between requests to the same
// source. One limiter is shared by every user's cycle so concurrent digests
// do not hammer a board.
type SourceRateLimiter struct {
	mu       sync.Mutex
	next     map[string]time.Time // key: source name, earliest allowed start
	minDelay time.Duration
}

// NewSourceRateLimiter creates a rate limiter that enforces minDelay between
// consecutive requests to the same source.
func NewSourceRateLimiter(minDelay time.Duration) *SourceRateLimiter {
	return &SourceRateLimiter{
		next:     make(map[string]time.Time),
		minDelay: minDelay,
	}
}

// Wait blocks until the caller's reserved slot for source arrives.
// Returns an error if the context is cancelled while waiting.
func (r *SourceRateLimiter) Wait(ctx context.Context, source string) error {
	r.mu.Lock()
	now := time.Now()
	slot := r.next[source]
	if slot.Before(now) {
		slot = now
	}
	// Reserve the slot before sleeping so concurrent callers queue up
	// behind each other instead of all waking at once.
	r.next[source] = slot.Add(r.minDelay)
	r.mu.Unlock()

	wait := slot.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("rate limiter wait for %s: %w", source, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// RateLimitedSource is a decorator that enforces source-level rate limiting
// before delegating to the wrapped JobSource.
type RateLimitedSource struct {
	inner   model.JobSource
	limiter *SourceRateLimiter
}

// NewRateLimitedSource wraps a JobSource with rate limiting keyed by its name.
func NewRateLimitedSource(inner model.JobSource, limiter *SourceRateLimiter) *RateLimitedSource {
	return &RateLimitedSource{inner: inner, limiter: limiter}
}

func (s *RateLimitedSource) Name() string { return s.inner.Name() }

// Search waits for the limiter, then delegates to the wrapped source.
func (s *RateLimitedSource) Search(ctx context.Context, q model.Query) ([]model.Posting, error) {
	if err := s.limiter.Wait(ctx, s.inner.Name()); err != nil {
		return nil, err
	}
	return s.inner.Search(ctx, q)
}
