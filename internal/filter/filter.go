package filter

import (
	"strings"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

// QueryFilter narrows full company boards down to what a user asked for.
// A posting matches when its title contains the query title or any keyword,
// its location satisfies the location/remote preference, and it is not older
// than the query's max age. Matching is case-insensitive.
type QueryFilter struct {
	terms    []string
	location string
	remote   bool
	cutoff   time.Time
}

// NewQueryFilter builds a filter for q evaluated at now.
func NewQueryFilter(q model.Query, now time.Time) *QueryFilter {
	var terms []string
	if t := strings.TrimSpace(q.Title); t != "" {
		terms = append(terms, strings.ToLower(t))
	}
	for _, kw := range q.Keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			terms = append(terms, strings.ToLower(kw))
		}
	}
	f := &QueryFilter{
		terms:    terms,
		location: strings.ToLower(strings.TrimSpace(q.Location)),
		remote:   q.Remote,
	}
	if q.MaxAge > 0 {
		f.cutoff = now.Add(-q.MaxAge)
	}
	return f
}

// Match reports whether p satisfies the query. Postings without a date are
// never excluded by age.
func (f *QueryFilter) Match(p model.Posting) bool {
	if len(f.terms) > 0 {
		title := strings.ToLower(p.Title)
		matched := false
		for _, term := range f.terms {
			if strings.Contains(title, term) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	location := strings.ToLower(p.Location)
	isRemote := strings.Contains(location, "remote")
	switch {
	case f.location != "" && f.remote:
		if !strings.Contains(location, f.location) && !isRemote {
			return false
		}
	case f.location != "":
		if !strings.Contains(location, f.location) {
			return false
		}
	case f.remote:
		if !isRemote {
			return false
		}
	}

	if !f.cutoff.IsZero() && p.PostedAt != nil && p.PostedAt.Before(f.cutoff) {
		return false
	}
	return true
}

// Apply returns the postings that match, keeping their order, capped at limit
// when limit is positive.
func Apply(f model.PostingFilter, postings []model.Posting, limit int) []model.Posting {
	out := make([]model.Posting, 0, len(postings))
	for _, p := range postings {
		if !f.Match(p) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
