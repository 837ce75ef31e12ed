package retry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockSource calls a function on each invocation, tracking call count.
type mockSource struct {
	calls int
	fn    func(attempt int) ([]model.Posting, error)
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) Search(_ context.Context, _ model.Query) ([]model.Posting, error) {
	m.calls++
	return m.fn(m.calls)
}

func policy(retries int, delay time.Duration) Policy {
	return Policy{MaxRetries: retries, BaseDelay: delay}
}

func TestRetry_SucceedsOnFirstAttempt(t *testing.T) {
	postings := []model.Posting{{ID: "1", Title: "Engineer"}}
	mock := &mockSource{fn: func(_ int) ([]model.Posting, error) {
		return postings, nil
	}}

	rs := NewRetrySource(mock, policy(1, 10*time.Millisecond), discardLogger())
	got, err := rs.Search(context.Background(), model.Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("unexpected postings: %v", got)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call, got %d", mock.calls)
	}
}

func TestRetry_RetriesOn5xx_SucceedsOnSecondAttempt(t *testing.T) {
	mock := &mockSource{fn: func(attempt int) ([]model.Posting, error) {
		if attempt == 1 {
			return nil, &model.HTTPError{StatusCode: 503, Err: errors.New("service unavailable")}
		}
		return []model.Posting{{ID: "1"}}, nil
	}}

	rs := NewRetrySource(mock, policy(1, 10*time.Millisecond), discardLogger())
	got, err := rs.Search(context.Background(), model.Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 posting, got %d", len(got))
	}
	if mock.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", mock.calls)
	}
}

func TestRetry_DoesNotRetryOn4xx(t *testing.T) {
	mock := &mockSource{fn: func(_ int) ([]model.Posting, error) {
		return nil, &model.HTTPError{StatusCode: 404, Err: errors.New("not found")}
	}}

	rs := NewRetrySource(mock, policy(1, 10*time.Millisecond), discardLogger())
	_, err := rs.Search(context.Background(), model.Query{})
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 404 {
		t.Fatalf("expected HTTPError with status 404, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call (no retry), got %d", mock.calls)
	}
}

func TestRetry_SingleRetryThenGivesUp(t *testing.T) {
	mock := &mockSource{fn: func(_ int) ([]model.Posting, error) {
		return nil, errors.New("connection reset")
	}}

	rs := NewRetrySource(mock, policy(1, 10*time.Millisecond), discardLogger())
	if _, err := rs.Search(context.Background(), model.Query{}); err == nil {
		t.Fatal("expected error after retry, got nil")
	}
	if mock.calls != 2 {
		t.Fatalf("expected 2 calls (1 + 1 retry), got %d", mock.calls)
	}
}

func TestRetry_RespectsContextCancellation(t *testing.T) {
	mock := &mockSource{fn: func(_ int) ([]model.Posting, error) {
		return nil, &model.HTTPError{StatusCode: 500, Err: errors.New("internal error")}
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rs := NewRetrySource(mock, policy(2, time.Second), discardLogger())
	_, err := rs.Search(ctx, model.Query{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.calls != 1 {
		t.Fatalf("expected 1 call before cancellation, got %d", mock.calls)
	}
}

func TestRetry_HonorsRetryAfter(t *testing.T) {
	p := policy(1, time.Hour)
	err := &model.HTTPError{StatusCode: 429, RetryAfter: 3 * time.Second}
	if got := p.backoffDelay(1, err); got != 3*time.Second {
		t.Fatalf("backoffDelay = %v, want 3s", got)
	}
}

func TestDo_GenericResult(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), policy(1, time.Millisecond), discardLogger(), func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("timeout talking to upstream")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" || calls != 2 {
		t.Fatalf("got %q err=%v calls=%d", got, err, calls)
	}
}

func TestDo_PermanentErrorNotRetried(t *testing.T) {
	sentinel := errors.New("not configured")
	calls := 0
	_, err := Do(context.Background(), policy(3, time.Millisecond), discardLogger(), func(context.Context) (int, error) {
		calls++
		return 0, Permanent(sentinel)
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}
