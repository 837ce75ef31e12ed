package dedup

import (
	"sort"
	"time"

	"github.com/amishk599/jobletter/internal/model"
)

// Ranker orders postings by source priority, then recency. Sources missing
// from the priority list rank after every listed source.
type Ranker struct {
	priority map[string]int
}

// NewRanker builds a Ranker where order[0] is the most preferred source.
func NewRanker(order []string) Ranker {
	priority := make(map[string]int, len(order))
	for i, name := range order {
		if _, ok := priority[name]; !ok {
			priority[name] = i
		}
	}
	return Ranker{priority: priority}
}

func (r Ranker) rank(source string) int {
	if p, ok := r.priority[source]; ok {
		return p
	}
	return len(r.priority)
}

// Rank returns a sorted copy of postings with in-batch duplicates removed.
// A duplicate shares an ID with a higher-ranked posting, or a fingerprint
// with a higher-ranked posting from another source.
// Equal keys keep their input order.
func (r Ranker) Rank(postings []model.Posting) []model.Posting {
	sorted := make([]model.Posting, len(postings))
	copy(sorted, postings)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if ra, rb := r.rank(a.Source), r.rank(b.Source); ra != rb {
			return ra < rb
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return newer(a.PostedAt, b.PostedAt)
	})

	seenIDs := make(map[string]bool, len(sorted))
	printSource := make(map[string]string, len(sorted))
	out := sorted[:0]
	for _, p := range sorted {
		if seenIDs[p.ID] {
			continue
		}
		fp := p.Fingerprint()
		if fp != model.EmptyFingerprint {
			if src, ok := printSource[fp]; ok && src != p.Source {
				continue
			}
			printSource[fp] = p.Source
		}
		seenIDs[p.ID] = true
		out = append(out, p)
	}
	return out
}

// newer reports whether a sorts before b by recency; undated postings last.
func newer(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}
