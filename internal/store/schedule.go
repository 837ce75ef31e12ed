package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

// GetScheduleState returns the user's schedule record, zero-valued if the
// user has never fired.
func (s *SQLiteStore) GetScheduleState(ctx context.Context, userID int64) (model.ScheduleState, error) {
	st := model.ScheduleState{UserID: userID}
	var firedAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT last_fired_date, last_fired_at, last_error, failures FROM schedule_state WHERE user_id = ?", userID).
		Scan(&st.LastFiredDate, &firedAt, &st.LastError, &st.Failures)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return model.ScheduleState{}, fmt.Errorf("loading schedule state for %d: %w", userID, err)
	}
	st.LastFiredAt = timeOrZero(firedAt)
	return st, nil
}

// RecordFired stores a successful cycle and clears the failure streak.
func (s *SQLiteStore) RecordFired(ctx context.Context, userID int64, date string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO schedule_state (user_id, last_fired_date, last_fired_at, last_error, failures)
		VALUES (?, ?, ?, '', 0)
		ON CONFLICT(user_id) DO UPDATE SET
			last_fired_date = excluded.last_fired_date,
			last_fired_at = excluded.last_fired_at,
			last_error = '',
			failures = 0`,
		userID, date, unixOrZero(at))
	if err != nil {
		return fmt.Errorf("recording fired cycle for %d: %w", userID, err)
	}
	return nil
}

// RecordFailure stores a failed cycle without touching last_fired_date.
func (s *SQLiteStore) RecordFailure(ctx context.Context, userID int64, reason string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO schedule_state (user_id, last_error, failures)
		VALUES (?, ?, 1)
		ON CONFLICT(user_id) DO UPDATE SET
			last_error = excluded.last_error,
			failures = schedule_state.failures + 1`,
		userID, reason)
	if err != nil {
		return fmt.Errorf("recording failed cycle for %d: %w", userID, err)
	}
	return nil
}
