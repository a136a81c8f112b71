package storage

import (
	"context"
	"time"
	"unicode/utf8"
)

// Candidate is one search result that may point at a post by the target user.
// Two candidates are the same result when their Link is equal.
type Candidate struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Truncate returns s cut to at most n runes. n <= 0 leaves s unchanged.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Page is the outcome of fetching one search result page.
type Page struct {
	ID         string
	Query      string
	Index      int // zero-based page number within the query
	URL        string
	StatusCode int
	Headers    map[string][]string
	Body       []byte
	Duration   time.Duration
	// Blocked is set when the response looks like a soft block
	// (challenge page or rate limit) rather than a result page.
	Blocked     bool
	BlockReason string
	FetchedAt   time.Time
	Error       string // non-empty when no usable response was obtained
}

// Record is a kept Candidate together with where and when it was found.
type Record struct {
	ID      string
	RunID   string
	Query   string
	Page    int // one-based
	FoundAt time.Time
	Candidate
}

// Filter narrows a Query over stored records.
type Filter struct {
	RunID string
	Link  string
	Since *time.Time
	Limit int
	// Offset skips that many records after ordering.
	Offset int
}

// Backend stores kept records as the run progresses.
type Backend interface {
	Save(ctx context.Context, rec *Record) error
	// Query returns matching records newest first.
	Query(ctx context.Context, filter Filter) ([]*Record, error)
	Close() error
}

// Paginate applies filter.Offset and filter.Limit to already ordered records.
// File-based backends use it after filtering in memory.
func Paginate(records []*Record, filter Filter) []*Record {
	if filter.Offset > 0 {
		if filter.Offset >= len(records) {
			return []*Record{}
		}
		records = records[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(records) {
		records = records[:filter.Limit]
	}
	return records
}
