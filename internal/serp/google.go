package serp

import (
	"fmt"
	"net/url"
	"strconv"
)

const (
	DefaultGoogleEndpoint = "https://www.google.com/search"
	DefaultPageSize       = 10
)

// Google builds result-page URLs for Google web search.
type Google struct {
	Endpoint string
	Locale   string // hl parameter
	PageSize int    // results per page, drives both start and num
	// KeepSimilar leaves Google's folding of near-duplicate results on.
	KeepSimilar bool
}

// NewGoogle returns a Google engine with defaults for zero fields.
func NewGoogle(endpoint, locale string, pageSize int) *Google {
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}
	if locale == "" {
		locale = "en"
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Google{Endpoint: endpoint, Locale: locale, PageSize: pageSize}
}

func (g *Google) Name() string { return "google" }

// PageURL returns the URL for the given zero-based result page.
func (g *Google) PageURL(query string, page int) (string, error) {
	if page < 0 {
		return "", fmt.Errorf("serp: page cannot be negative: %d", page)
	}
	u, err := url.Parse(g.Endpoint)
	if err != nil {
		return "", fmt.Errorf("serp: parse endpoint %q: %w", g.Endpoint, err)
	}

	size := g.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	params := u.Query()
	params.Set("q", query)
	params.Set("start", strconv.Itoa(page*size))
	params.Set("hl", g.Locale)
	params.Set("num", strconv.Itoa(size))
	if g.KeepSimilar {
		params.Set("filter", "1")
	} else {
		params.Set("filter", "0")
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}
