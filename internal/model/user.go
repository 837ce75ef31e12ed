package model

import (
	"fmt"
	"time"
	_ "time/tzdata" // user timezones must resolve on hosts without zoneinfo
)

// Preferences hold what and when a user wants to search.
type Preferences struct {
	Title    string
	Location string
	Keywords []string
	Remote   bool
	Hour     int    // local digest hour, 0-23
	Minute   int    // local digest minute, 0-59
	Timezone string // IANA zone name, empty means UTC
}

// Zone resolves the preference timezone.
func (p Preferences) Zone() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// UserProfile is everything the service knows about one user.
type UserProfile struct {
	UserID       int64
	Resume       string
	SampleLetter string
	Prefs        Preferences
	AlertEnabled bool
	Sources      map[string]bool // absent means enabled
	CreatedAt    time.Time
}

// Configured reports whether the user can generate letters.
func (u UserProfile) Configured() bool {
	return u.Resume != "" && u.SampleLetter != ""
}

// HasPreferences reports whether /jobsetup was completed.
func (u UserProfile) HasPreferences() bool {
	return u.Prefs.Title != ""
}

// SourceEnabled reports whether the user wants results from the named source.
func (u UserProfile) SourceEnabled(name string) bool {
	enabled, ok := u.Sources[name]
	return !ok || enabled
}

// Query builds the search query for this user.
func (u UserProfile) Query(maxResults int, maxAge time.Duration) Query {
	return Query{
		Title:      u.Prefs.Title,
		Keywords:   u.Prefs.Keywords,
		Location:   u.Prefs.Location,
		Remote:     u.Prefs.Remote,
		MaxResults: maxResults,
		MaxAge:     maxAge,
	}
}

// PendingControl maps an opaque button token to the posting it was attached to.
type PendingControl struct {
	Token     string
	UserID    int64
	PostingID string
	CreatedAt time.Time
}

// ScheduleState is the durable per-user scheduling record.
type ScheduleState struct {
	UserID        int64
	LastFiredDate string // YYYY-MM-DD in the user's timezone
	LastFiredAt   time.Time
	LastError     string
	Failures      int
}

// DateLayout is the layout of ScheduleState.LastFiredDate.
const DateLayout = "2006-01-02"
