package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/amishk599/jobletter/internal/aggregator"
	"github.com/amishk599/jobletter/internal/dedup"
	"github.com/amishk599/jobletter/internal/digest"
	"github.com/amishk599/jobletter/internal/model"
)

// Searcher fans a query out to the user's sources.
type Searcher interface {
	Search(ctx context.Context, profile model.UserProfile, q model.Query) aggregator.Result
}

// NoveltyFilter selects the postings a user has not seen yet.
type NoveltyFilter interface {
	FilterNovel(ctx context.Context, userID int64, postings []model.Posting) (dedup.Selection, error)
}

// Dispatcher delivers a selection to a user.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID int64, sel dedup.Selection) (digest.Result, error)
}

// Outcome summarizes one completed cycle.
type Outcome struct {
	Fetched   int
	Novel     int
	Delivered int
	Failures  []model.SourceFailure
}

// UserPoller owns the full digest pipeline for one user:
// search → dedup → dispatch → mark seen.
type UserPoller struct {
	searcher   Searcher
	filter     NoveltyFilter
	dispatcher Dispatcher
	notifier   model.Notifier
	maxResults int
	maxAge     time.Duration
	logger     *slog.Logger
}

// NewUserPoller creates a poller wired with all its dependencies.
func NewUserPoller(
	searcher Searcher,
	filter NoveltyFilter,
	dispatcher Dispatcher,
	notifier model.Notifier,
	maxResults int,
	maxAge time.Duration,
	logger *slog.Logger,
) *UserPoller {
	return &UserPoller{
		searcher:   searcher,
		filter:     filter,
		dispatcher: dispatcher,
		notifier:   notifier,
		maxResults: maxResults,
		maxAge:     maxAge,
		logger:     logger,
	}
}

// Poll runs one cycle for profile. Source failures are reported but only
// fail the cycle when every source failed. A returned error means nothing
// was marked seen and the cycle should be retried.
func (p *UserPoller) Poll(ctx context.Context, profile model.UserProfile) (Outcome, error) {
	q := profile.Query(p.maxResults, p.maxAge)
	res := p.searcher.Search(ctx, profile, q)
	out := Outcome{Fetched: len(res.Postings), Failures: res.Failures}

	if res.AllFailed() {
		p.alert(ctx, profile.UserID, "All sources failed", model.ErrAllSourcesFailed, res.Failures)
		return out, fmt.Errorf("polling user %d: %w", profile.UserID, model.ErrAllSourcesFailed)
	}
	if len(res.Failures) > 0 {
		p.alert(ctx, profile.UserID, "Some sources failed", nil, res.Failures)
	}

	sel, err := p.filter.FilterNovel(ctx, profile.UserID, res.Postings)
	if err != nil {
		return out, fmt.Errorf("polling user %d: %w", profile.UserID, err)
	}
	out.Novel = len(sel.Postings) + len(sel.Overflow)

	delivered, err := p.dispatcher.Dispatch(ctx, profile.UserID, sel)
	if err != nil {
		p.alert(ctx, profile.UserID, "Digest delivery failed", err, nil)
		return out, fmt.Errorf("polling user %d: %w", profile.UserID, err)
	}
	out.Delivered = delivered.Delivered

	p.logger.Info("polled user",
		"user", profile.UserID,
		"fetched", out.Fetched,
		"novel", out.Novel,
		"delivered", out.Delivered,
		"failed_sources", len(out.Failures),
	)
	return out, nil
}

func (p *UserPoller) alert(ctx context.Context, userID int64, msg string, err error, failures []model.SourceFailure) {
	a := model.Alert{UserID: userID, Message: msg, Err: err, Failures: failures, At: time.Now()}
	if nErr := p.notifier.Notify(ctx, a); nErr != nil {
		p.logger.Error("alert failed", "user", userID, "error", nErr)
	}
}
