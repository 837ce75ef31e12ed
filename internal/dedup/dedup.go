package dedup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/amishk599/jobletter/internal/model"
)

// DefaultDigestSize is the number of postings in a digest unless configured.
const DefaultDigestSize = 10

// SeenStore is the persistence the dedup store needs.
type SeenStore interface {
	Known(ctx context.Context, userID int64, postingID string) (bool, error)
	MarkSeen(ctx context.Context, userID int64, postings []model.Posting) error
	MarkSkipped(ctx context.Context, userID int64, postings []model.Posting) error
}

// Selection is the result of FilterNovel.
type Selection struct {
	Postings []model.Posting // the digest, ranked, at most the digest size
	Overflow []model.Posting // novel postings cut by the size limit
}

// Store decides which postings are new for a user and remembers deliveries.
type Store struct {
	seen   SeenStore
	ranker Ranker
	size   int
	logger *slog.Logger
}

// New creates a Store. sourceOrder sets ranking priority; size caps a digest.
func New(seen SeenStore, sourceOrder []string, size int, logger *slog.Logger) *Store {
	if size <= 0 {
		size = DefaultDigestSize
	}
	return &Store{seen: seen, ranker: NewRanker(sourceOrder), size: size, logger: logger}
}

// FilterNovel ranks postings, removes in-batch duplicates and anything the
// user has already been shown or passed over, then cuts to the digest size.
// It does not modify stored state.
func (s *Store) FilterNovel(ctx context.Context, userID int64, postings []model.Posting) (Selection, error) {
	ranked := s.ranker.Rank(postings)

	var novel []model.Posting
	for _, p := range ranked {
		known, err := s.seen.Known(ctx, userID, p.ID)
		if err != nil {
			return Selection{}, fmt.Errorf("filter novel for user %d: %w", userID, err)
		}
		if !known {
			novel = append(novel, p)
		}
	}

	sel := Selection{Postings: novel}
	if len(novel) > s.size {
		sel.Postings = novel[:s.size:s.size]
		sel.Overflow = novel[s.size:]
	}

	s.logger.Debug("filtered postings",
		"user", userID,
		"input", len(postings),
		"unique", len(ranked),
		"novel", len(novel),
		"selected", len(sel.Postings),
	)
	return sel, nil
}

// MarkSeen records delivered postings. Call only after delivery succeeded.
func (s *Store) MarkSeen(ctx context.Context, userID int64, postings []model.Posting) error {
	if err := s.seen.MarkSeen(ctx, userID, postings); err != nil {
		return fmt.Errorf("mark seen for user %d: %w", userID, err)
	}
	return nil
}

// MarkSkipped records postings cut from a delivered digest so they never
// surface in a later one.
func (s *Store) MarkSkipped(ctx context.Context, userID int64, postings []model.Posting) error {
	if err := s.seen.MarkSkipped(ctx, userID, postings); err != nil {
		return fmt.Errorf("mark skipped for user %d: %w", userID, err)
	}
	return nil
}

// Size returns the configured digest size.
func (s *Store) Size() int { return s.size }
