package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/amishk599/jobletter/internal/model"
)

const userColumns = `user_id, resume, sample_letter, title, location, keywords, remote,
	hour, minute, timezone, alert_enabled, sources, created_at`

// EnsureUser creates an empty profile for userID if none exists.
func (s *SQLiteStore) EnsureUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO users (user_id, created_at) VALUES (?, ?)",
		userID, s.now().Unix())
	if err != nil {
		return fmt.Errorf("ensuring user %d: %w", userID, err)
	}
	return nil
}

// GetUser loads a profile. Returns model.ErrUserNotFound if absent.
func (s *SQLiteStore) GetUser(ctx context.Context, userID int64) (model.UserProfile, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE user_id = ?", userID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UserProfile{}, fmt.Errorf("user %d: %w", userID, model.ErrUserNotFound)
	}
	if err != nil {
		return model.UserProfile{}, fmt.Errorf("loading user %d: %w", userID, err)
	}
	return u, nil
}

// ListUsers returns every profile ordered by id.
func (s *SQLiteStore) ListUsers(ctx context.Context) ([]model.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.UserProfile
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetResume replaces the stored résumé text.
func (s *SQLiteStore) SetResume(ctx context.Context, userID int64, text string) error {
	return s.updateUser(ctx, userID, "resume = ?", text)
}

// SetSampleLetter replaces the stored sample letter text.
func (s *SQLiteStore) SetSampleLetter(ctx context.Context, userID int64, text string) error {
	return s.updateUser(ctx, userID, "sample_letter = ?", text)
}

// SetPreferences replaces the search preferences.
func (s *SQLiteStore) SetPreferences(ctx context.Context, userID int64, p model.Preferences) error {
	keywords, err := json.Marshal(nonNil(p.Keywords))
	if err != nil {
		return fmt.Errorf("encoding keywords: %w", err)
	}
	return s.updateUser(ctx, userID,
		"title = ?, location = ?, keywords = ?, remote = ?, hour = ?, minute = ?, timezone = ?",
		p.Title, p.Location, string(keywords), p.Remote, p.Hour, p.Minute, p.Timezone)
}

// SetAlert turns the daily digest on or off.
func (s *SQLiteStore) SetAlert(ctx context.Context, userID int64, enabled bool) error {
	return s.updateUser(ctx, userID, "alert_enabled = ?", enabled)
}

// SetSourceEnabled toggles one source for a user.
func (s *SQLiteStore) SetSourceEnabled(ctx context.Context, userID int64, source string, enabled bool) error {
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	sources := make(map[string]bool, len(u.Sources)+1)
	for k, v := range u.Sources {
		sources[k] = v
	}
	sources[source] = enabled
	raw, err := json.Marshal(sources)
	if err != nil {
		return fmt.Errorf("encoding sources: %w", err)
	}
	return s.updateUser(ctx, userID, "sources = ?", string(raw))
}

func (s *SQLiteStore) updateUser(ctx context.Context, userID int64, set string, args ...any) error {
	if err := s.EnsureUser(ctx, userID); err != nil {
		return err
	}
	args = append(args, userID)
	if _, err := s.db.ExecContext(ctx, "UPDATE users SET "+set+" WHERE user_id = ?", args...); err != nil {
		return fmt.Errorf("updating user %d: %w", userID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (model.UserProfile, error) {
	var (
		u                 model.UserProfile
		keywords, sources string
		createdAt         int64
	)
	err := row.Scan(&u.UserID, &u.Resume, &u.SampleLetter, &u.Prefs.Title, &u.Prefs.Location,
		&keywords, &u.Prefs.Remote, &u.Prefs.Hour, &u.Prefs.Minute, &u.Prefs.Timezone,
		&u.AlertEnabled, &sources, &createdAt)
	if err != nil {
		return model.UserProfile{}, err
	}
	if err := json.Unmarshal([]byte(keywords), &u.Prefs.Keywords); err != nil {
		return model.UserProfile{}, fmt.Errorf("decoding keywords for user %d: %w", u.UserID, err)
	}
	if err := json.Unmarshal([]byte(sources), &u.Sources); err != nil {
		return model.UserProfile{}, fmt.Errorf("decoding sources for user %d: %w", u.UserID, err)
	}
	u.CreatedAt = timeOrZero(createdAt)
	return u, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
