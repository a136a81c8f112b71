// Package filter decides which extracted candidates are kept and
// deduplicates them across a run.
package filter

import (
	"iter"
	"strings"

	"github.com/FranksOps/igmention/internal/storage"
)

// DefaultPostPrefixes are the link prefixes of individual Instagram posts.
var DefaultPostPrefixes = []string{
	"https://www.instagram.com/p/",
	"https://instagram.com/p/",
}

// Matcher keeps candidates that link to a post and mention the username.
type Matcher struct {
	prefixes  []string
	lowerUser string
}

// NewMatcher builds a Matcher for username. Nil prefixes means
// DefaultPostPrefixes.
func NewMatcher(username string, prefixes []string) *Matcher {
	if prefixes == nil {
		prefixes = DefaultPostPrefixes
	}
	return &Matcher{
		prefixes:  prefixes,
		lowerUser: strings.ToLower(strings.TrimSpace(username)),
	}
}

// IsPostLink reports whether link starts with one of the post prefixes.
func (m *Matcher) IsPostLink(link string) bool {
	for _, p := range m.prefixes {
		if strings.HasPrefix(link, p) {
			return true
		}
	}
	return false
}

// MentionsUser reports whether the username occurs, ignoring case, in the
// title and snippet joined together.
func (m *Matcher) MentionsUser(c storage.Candidate) bool {
	if m.lowerUser == "" {
		return false
	}
	return strings.Contains(strings.ToLower(c.Title+c.Snippet), m.lowerUser)
}

// Keep reports whether c passes both predicates.
func (m *Matcher) Keep(c storage.Candidate) bool {
	return m.IsPostLink(c.Link) && m.MentionsUser(c)
}

// Filter yields the candidates of seq that Keep accepts.
func (m *Matcher) Filter(seq iter.Seq[storage.Candidate]) iter.Seq[storage.Candidate] {
	return func(yield func(storage.Candidate) bool) {
		for c := range seq {
			if !m.Keep(c) {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}

// ResultSet holds candidates in the order first seen, one per link.
// The zero value is ready to use.
type ResultSet struct {
	items      []storage.Candidate
	seen       map[string]struct{}
	duplicates int
}

// Add stores c unless a candidate with the same link is already present.
// It reports whether c was added.
func (r *ResultSet) Add(c storage.Candidate) bool {
	if r.seen == nil {
		r.seen = make(map[string]struct{})
	}
	if _, ok := r.seen[c.Link]; ok {
		r.duplicates++
		return false
	}
	r.seen[c.Link] = struct{}{}
	r.items = append(r.items, c)
	return true
}

// Items returns a copy of the stored candidates in insertion order.
func (r *ResultSet) Items() []storage.Candidate {
	out := make([]storage.Candidate, len(r.items))
	copy(out, r.items)
	return out
}

func (r *ResultSet) Len() int { return len(r.items) }

// Duplicates is the number of rejected Add calls.
func (r *ResultSet) Duplicates() int { return r.duplicates }
