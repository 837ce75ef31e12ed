package scheduler

import (
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

// State is where a user sits in the daily digest cycle.
type State int

const (
	Idle State = iota
	Due
	Fired
)

func (s State) String() string {
	switch s {
	case Due:
		return "due"
	case Fired:
		return "fired"
	default:
		return "idle"
	}
}

// Evaluate computes the user's state at now. Fired wins over everything once
// the digest went out on the user's local calendar day. A user becomes Due
// when alerts are on and local time has reached the configured HH:MM. An
// unparseable timezone falls back to UTC.
func Evaluate(profile model.UserProfile, st model.ScheduleState, now time.Time) State {
	local := LocalTime(profile, now)
	if st.LastFiredDate == local.Format(model.DateLayout) {
		return Fired
	}
	if !profile.AlertEnabled || !profile.HasPreferences() {
		return Idle
	}
	due := time.Date(local.Year(), local.Month(), local.Day(), profile.Prefs.Hour, profile.Prefs.Minute, 0, 0, local.Location())
	if local.Before(due) {
		return Idle
	}
	return Due
}

// LocalTime converts now into the user's configured timezone.
func LocalTime(profile model.UserProfile, now time.Time) time.Time {
	loc, err := profile.Prefs.Zone()
	if err != nil {
		loc = time.UTC
	}
	return now.In(loc)
}

// LocalDate is the user's calendar date at now, in model.DateLayout.
func LocalDate(profile model.UserProfile, now time.Time) string {
	return LocalTime(profile, now).Format(model.DateLayout)
}
