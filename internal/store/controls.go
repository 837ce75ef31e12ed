package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/amishk599/jobletter/internal/model"
)

// SaveControls persists pending controls atomically.
func (s *SQLiteStore) SaveControls(ctx context.Context, controls []model.PendingControl) error {
	if len(controls) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save controls: %w", err)
	}
	defer tx.Rollback()

	for _, c := range controls {
		created := c.CreatedAt
		if created.IsZero() {
			created = s.now()
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO pending_controls (token, user_id, posting_id, created_at) VALUES (?, ?, ?, ?)",
			c.Token, c.UserID, c.PostingID, created.Unix()); err != nil {
			return fmt.Errorf("saving control %s: %w", c.Token, err)
		}
	}
	return tx.Commit()
}

// GetControl looks up a token. Lookups never consume the control.
func (s *SQLiteStore) GetControl(ctx context.Context, token string) (model.PendingControl, error) {
	var (
		c       model.PendingControl
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT token, user_id, posting_id, created_at FROM pending_controls WHERE token = ?", token).
		Scan(&c.Token, &c.UserID, &c.PostingID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return model.PendingControl{}, fmt.Errorf("control %q: %w", token, model.ErrNotFound)
	}
	if err != nil {
		return model.PendingControl{}, fmt.Errorf("loading control %q: %w", token, err)
	}
	c.CreatedAt = timeOrZero(created)
	return c, nil
}

// DeleteControls discards the given tokens.
func (s *SQLiteStore) DeleteControls(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete controls: %w", err)
	}
	defer tx.Rollback()

	for _, token := range tokens {
		if _, err := tx.ExecContext(ctx, "DELETE FROM pending_controls WHERE token = ?", token); err != nil {
			return fmt.Errorf("deleting control %s: %w", token, err)
		}
	}
	return tx.Commit()
}
