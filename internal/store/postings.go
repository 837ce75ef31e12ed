package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

// SavePostings stores postings. A posting already stored is left untouched.
func (s *SQLiteStore) SavePostings(ctx context.Context, postings []model.Posting) error {
	if len(postings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save postings: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO postings
		(posting_id, native_id, source, title, company, location, url, description, posted_at, first_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare save postings: %w", err)
	}
	defer stmt.Close()

	now := s.now()
	for _, p := range postings {
		var postedAt sql.NullInt64
		if p.PostedAt != nil {
			postedAt = sql.NullInt64{Int64: p.PostedAt.Unix(), Valid: true}
		}
		firstSeen := p.FirstSeen
		if firstSeen.IsZero() {
			firstSeen = now
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.NativeID, p.Source, p.Title, p.Company,
			p.Location, p.URL, p.Description, postedAt, firstSeen.Unix()); err != nil {
			return fmt.Errorf("saving posting %s: %w", p.ID, err)
		}
	}
	return tx.Commit()
}

// GetPosting loads a stored posting. Returns model.ErrNotFound if absent.
func (s *SQLiteStore) GetPosting(ctx context.Context, postingID string) (model.Posting, error) {
	var (
		p         model.Posting
		postedAt  sql.NullInt64
		firstSeen int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT posting_id, native_id, source, title, company,
		location, url, description, posted_at, first_seen FROM postings WHERE posting_id = ?`, postingID).
		Scan(&p.ID, &p.NativeID, &p.Source, &p.Title, &p.Company, &p.Location, &p.URL,
			&p.Description, &postedAt, &firstSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Posting{}, fmt.Errorf("posting %s: %w", postingID, model.ErrNotFound)
	}
	if err != nil {
		return model.Posting{}, fmt.Errorf("loading posting %s: %w", postingID, err)
	}
	if postedAt.Valid {
		t := time.Unix(postedAt.Int64, 0).UTC()
		p.PostedAt = &t
	}
	p.FirstSeen = timeOrZero(firstSeen)
	return p, nil
}

// Known reports whether the user was already shown, or already passed over,
// the posting with this id. Identity is the id alone: a board that lists the
// same role twice under distinct ids has two postings.
func (s *SQLiteStore) Known(ctx context.Context, userID int64, postingID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM seen_postings WHERE user_id = ? AND posting_id = ?
		UNION ALL
		SELECT 1 FROM skipped_postings WHERE user_id = ? AND posting_id = ?
		LIMIT 1`,
		userID, postingID, userID, postingID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking seen status for %s: %w", postingID, err)
	}
	return true, nil
}

// MarkSeen records delivered postings for a user. Repeated calls are no-ops.
func (s *SQLiteStore) MarkSeen(ctx context.Context, userID int64, postings []model.Posting) error {
	return s.mark(ctx, "INSERT OR IGNORE INTO seen_postings (user_id, posting_id, seen_at) VALUES (?, ?, ?)",
		userID, postings)
}

// MarkSkipped records postings that were novel in a delivered cycle but did
// not make the digest cut.
func (s *SQLiteStore) MarkSkipped(ctx context.Context, userID int64, postings []model.Posting) error {
	return s.mark(ctx, "INSERT OR IGNORE INTO skipped_postings (user_id, posting_id, skipped_at) VALUES (?, ?, ?)",
		userID, postings)
}

func (s *SQLiteStore) mark(ctx context.Context, query string, userID int64, postings []model.Posting) error {
	if len(postings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin mark: %w", err)
	}
	defer tx.Rollback()

	now := s.now().Unix()
	for _, p := range postings {
		if _, err := tx.ExecContext(ctx, query, userID, p.ID, now); err != nil {
			return fmt.Errorf("marking posting %s for user %d: %w", p.ID, userID, err)
		}
	}
	return tx.Commit()
}

// SeenCount returns how many postings a user has been shown.
func (s *SQLiteStore) SeenCount(ctx context.Context, userID int64) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM seen_postings WHERE user_id = ?", userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting seen postings: %w", err)
	}
	return count, nil
}
