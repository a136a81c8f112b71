package serp

import (
	"errors"
	"strings"
)

// UsernamePlaceholder is substituted with the target username in query templates.
const UsernamePlaceholder = "{username}"

// DefaultTemplates are the query templates used when none are configured.
var DefaultTemplates = []string{
	`"{username}" site:instagram.com`,
	`from:{username} site:instagram.com`,
	`"{username}" commented on site:instagram.com`,
}

// ErrEmptyUsername is returned when queries are built without a username.
var ErrEmptyUsername = errors.New("serp: username is empty")

// Engine turns a query and a zero-based page index into a request URL.
type Engine interface {
	PageURL(query string, page int) (string, error)
	Name() string
}

// BuildQueries renders each template for username. Templates that render to
// the same query are kept once, in their original order.
func BuildQueries(username string, templates []string) ([]string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrEmptyUsername
	}
	if len(templates) == 0 {
		templates = DefaultTemplates
	}

	seen := make(map[string]struct{}, len(templates))
	queries := make([]string, 0, len(templates))
	for _, tmpl := range templates {
		q := strings.TrimSpace(strings.ReplaceAll(tmpl, UsernamePlaceholder, username))
		if q == "" {
			continue
		}
		if _, dup := seen[q]; dup {
			continue
		}
		seen[q] = struct{}{}
		queries = append(queries, q)
	}
	return queries, nil
}
