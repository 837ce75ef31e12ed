// Package digest turns a selection of novel postings into one delivered
// message with a durable control token per posting.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/amishk599/jobletter/internal/dedup"
	"github.com/amishk599/jobletter/internal/model"
)

// ControlStore persists postings and the tokens pointing at them.
type ControlStore interface {
	SavePostings(ctx context.Context, postings []model.Posting) error
	SaveControls(ctx context.Context, controls []model.PendingControl) error
	DeleteControls(ctx context.Context, tokens []string) error
}

// SeenMarker records what a user has been shown.
type SeenMarker interface {
	MarkSeen(ctx context.Context, userID int64, postings []model.Posting) error
	MarkSkipped(ctx context.Context, userID int64, postings []model.Posting) error
}

// Result describes a delivered digest.
type Result struct {
	Delivered int
	Tokens    []string
}

const bookkeepingTimeout = 10 * time.Second

// Dispatcher delivers digests all-or-nothing: either the message went out,
// its controls are durable and its postings are marked seen, or none of that
// happened.
type Dispatcher struct {
	store     ControlStore
	seen      SeenMarker
	transport model.Transport
	newToken  func() string
	now       func() time.Time
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store ControlStore, seen SeenMarker, transport model.Transport, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:     store,
		seen:      seen,
		transport: transport,
		newToken:  uuid.NewString,
		now:       time.Now,
		logger:    logger,
	}
}

// Dispatch delivers sel to userID. Delivery failures return an error wrapping
// model.ErrDeliveryFailed and leave no trace in the seen set. Once the
// transport confirms a send, Dispatch reports success.
func (d *Dispatcher) Dispatch(ctx context.Context, userID int64, sel dedup.Selection) (Result, error) {
	if len(sel.Postings) == 0 {
		if err := d.transport.SendText(ctx, userID, NoNewPostingsText); err != nil {
			return Result{}, fmt.Errorf("%w: %v", model.ErrDeliveryFailed, err)
		}
		d.logger.Info("empty digest delivered", "user", userID)
		return Result{}, nil
	}

	if err := d.store.SavePostings(ctx, sel.Postings); err != nil {
		return Result{}, fmt.Errorf("dispatch for user %d: %w", userID, err)
	}

	now := d.now()
	items := make([]model.DigestItem, len(sel.Postings))
	controls := make([]model.PendingControl, len(sel.Postings))
	tokens := make([]string, len(sel.Postings))
	for i, p := range sel.Postings {
		token := d.newToken()
		tokens[i] = token
		items[i] = model.DigestItem{Posting: p, Token: token}
		controls[i] = model.PendingControl{Token: token, UserID: userID, PostingID: p.ID, CreatedAt: now}
	}

	// Controls must exist before the message does: a user can press a button
	// the moment it arrives.
	if err := d.store.SaveControls(ctx, controls); err != nil {
		return Result{}, fmt.Errorf("dispatch for user %d: %w", userID, err)
	}

	if err := d.transport.SendDigest(ctx, userID, items); err != nil {
		cleanupCtx, cancel := detached(ctx)
		defer cancel()
		if delErr := d.store.DeleteControls(cleanupCtx, tokens); delErr != nil {
			d.logger.Error("failed to discard controls of undelivered digest", "user", userID, "error", delErr)
		}
		return Result{}, fmt.Errorf("%w: %v", model.ErrDeliveryFailed, err)
	}

	// The message is out. From here on the digest counts as delivered: a
	// bookkeeping error is logged, never returned, so the cycle is not
	// retried and the same postings are not sent again.
	bookCtx, cancel := detached(ctx)
	defer cancel()
	if err := d.seen.MarkSeen(bookCtx, userID, sel.Postings); err != nil {
		d.logger.Error("digest delivered but not recorded as seen", "user", userID, "postings", len(sel.Postings), "error", err)
	}
	if err := d.seen.MarkSkipped(bookCtx, userID, sel.Overflow); err != nil {
		d.logger.Error("digest delivered but overflow not recorded", "user", userID, "overflow", len(sel.Overflow), "error", err)
	}

	d.logger.Info("digest delivered", "user", userID, "postings", len(sel.Postings), "overflow", len(sel.Overflow))
	return Result{Delivered: len(sel.Postings), Tokens: tokens}, nil
}

// detached returns a context that outlives ctx's cancellation and deadline.
// The transport may finish a send after the cycle deadline has passed.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

// NoNewPostingsText is sent when a cycle finds nothing new.
const NoNewPostingsText = "No new matching jobs today. I'll look again tomorrow."
