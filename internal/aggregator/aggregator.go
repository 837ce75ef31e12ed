package aggregator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/amishk599/jobletter/internal/model"
)

// Result is the merged outcome of one aggregation pass.
type Result struct {
	Postings  []model.Posting
	Failures  []model.SourceFailure
	Attempted int
}

// AllFailed reports whether every attempted source failed.
func (r Result) AllFailed() bool {
	return r.Attempted > 0 && len(r.Failures) == r.Attempted
}

// Aggregator fans a query out to every source a user has enabled.
type Aggregator struct {
	sources []model.JobSource
	timeout time.Duration
	logger  *slog.Logger
}

// New creates an Aggregator over sources. The order of sources is the order
// results are merged in.
func New(sources []model.JobSource, timeout time.Duration, logger *slog.Logger) *Aggregator {
	return &Aggregator{sources: sources, timeout: timeout, logger: logger}
}

// SourceNames lists the configured sources in merge order.
func (a *Aggregator) SourceNames() []string {
	names := make([]string, len(a.sources))
	for i, s := range a.sources {
		names[i] = s.Name()
	}
	return names
}

// Search queries every source enabled in profile concurrently. One source
// failing never hides another's results. When every source fails, Postings
// is empty and AllFailed reports true.
func (a *Aggregator) Search(ctx context.Context, profile model.UserProfile, q model.Query) Result {
	var enabled []model.JobSource
	for _, s := range a.sources {
		if profile.SourceEnabled(s.Name()) {
			enabled = append(enabled, s)
		}
	}

	results := make([]SourceResult, len(enabled))
	var g errgroup.Group
	for i, s := range enabled {
		g.Go(func() error {
			results[i] = Fetch(ctx, s, q, a.timeout)
			return nil
		})
	}
	_ = g.Wait()

	res := Result{Attempted: len(enabled)}
	for _, r := range results {
		if r.Failure != nil {
			a.logger.Warn("source failed", "user", profile.UserID, "source", r.Source, "reason", r.Failure.Reason)
			res.Failures = append(res.Failures, *r.Failure)
			continue
		}
		a.logger.Debug("source returned postings", "user", profile.UserID, "source", r.Source, "count", len(r.Postings))
		res.Postings = append(res.Postings, r.Postings...)
	}
	if res.AllFailed() {
		res.Postings = nil
	}
	return res
}
