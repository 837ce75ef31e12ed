package model

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// MaxDescriptionRunes caps the description kept for generation context.
const MaxDescriptionRunes = 4000

// Posting is a normalized job listing from any source.
type Posting struct {
	ID          string     // stable identity, see PostingID
	NativeID    string     // id assigned by the source, may be empty
	Source      string     // source name (adzuna, greenhouse, ...)
	Title       string     // job title
	Company     string     // company name
	Location    string     // location string
	URL         string     // direct apply link
	Description string     // plain text, capped at MaxDescriptionRunes
	PostedAt    *time.Time // nullable (not all APIs provide this)
	FirstSeen   time.Time  // our clock (set on first encounter)
}

// PostingID derives a stable identity for a posting. It prefers the source's
// own id and falls back to a hash of the URL. Title and description are never
// part of the identity because boards edit them in place.
func PostingID(source, nativeID, url string) string {
	if nativeID != "" {
		return source + ":" + nativeID
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return source + ":u" + hex.EncodeToString(sum[:8])
}

// EmptyFingerprint is the fingerprint of a posting with no title, company
// or location. It identifies nothing.
const EmptyFingerprint = "||"

// Fingerprint identifies the same listing reported by different sources.
func (p Posting) Fingerprint() string {
	return normalize(p.Title) + "|" + normalize(p.Company) + "|" + normalize(p.Location)
}

func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return b.String()
}

// TruncateRunes cuts s to at most n runes.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Query is what a user asks every source for.
type Query struct {
	Title      string
	Keywords   []string
	Location   string
	Remote     bool
	MaxResults int
	MaxAge     time.Duration
}

// Terms joins title and keywords into a single search string.
func (q Query) Terms() string {
	parts := make([]string, 0, len(q.Keywords)+1)
	if q.Title != "" {
		parts = append(parts, q.Title)
	}
	parts = append(parts, q.Keywords...)
	return strings.Join(parts, " ")
}

// JobSource searches one job board.
type JobSource interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Posting, error)
}

// PostingFilter decides whether a posting matches a query.
type PostingFilter interface {
	Match(p Posting) bool
}

// DigestItem pairs a posting with the control token attached to its button.
type DigestItem struct {
	Posting Posting
	Token   string
}

// Transport delivers messages to a user over the chat interface.
type Transport interface {
	SendDigest(ctx context.Context, userID int64, items []DigestItem) error
	SendText(ctx context.Context, userID int64, text string) error
}

// Alert is an operator-facing report about a failed or degraded cycle.
type Alert struct {
	UserID   int64
	Message  string
	Failures []SourceFailure
	Err      error
	At       time.Time
}

// Notifier sends operator alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}
