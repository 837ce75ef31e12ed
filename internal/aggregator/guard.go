package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

// SourceResult is the outcome of one guarded source call. Exactly one of
// Postings or Failure is meaningful.
type SourceResult struct {
	Source   string
	Postings []model.Posting
	Failure  *model.SourceFailure
}

// Fetch calls src with a bounded timeout. Errors, timeouts and panics are
// converted into a SourceFailure; Fetch itself never fails or panics.
func Fetch(ctx context.Context, src model.JobSource, q model.Query, timeout time.Duration) SourceResult {
	name := src.Name()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		postings []model.Posting
		err      error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		postings, err := src.Search(ctx, q)
		done <- outcome{postings: postings, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return failed(name, o.err)
		}
		return SourceResult{Source: name, Postings: sanitize(name, o.postings)}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return failed(name, fmt.Errorf("timed out after %s", timeout))
		}
		return failed(name, ctx.Err())
	}
}

func failed(source string, err error) SourceResult {
	return SourceResult{
		Source:  source,
		Failure: &model.SourceFailure{Source: source, Reason: err.Error()},
	}
}

// sanitize drops postings without an identity and stamps the source name.
func sanitize(source string, postings []model.Posting) []model.Posting {
	out := postings[:0:0]
	for _, p := range postings {
		if p.ID == "" {
			continue
		}
		if p.Source == "" {
			p.Source = source
		}
		out = append(out, p)
	}
	return out
}
