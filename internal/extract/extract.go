// Package extract pulls result candidates out of search result HTML using
// ordered selector cascades. The selectors track the engine's current markup
// and are expected to need replacing over time, so every cascade is
// configurable.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/FranksOps/igmention/internal/storage"
	"github.com/PuerkitoBio/goquery"
)

const (
	NoTitle   = "No Title Found"
	NoSnippet = "No Snippet Found"

	DefaultSnippetCap = 200
)

// ErrNoBlocks is returned when no block selector matched anything.
var ErrNoBlocks = errors.New("extract: no result blocks found")

// Selectors holds the cascades. For each list the first selector that
// matches anything wins.
type Selectors struct {
	Blocks   []string `mapstructure:"blocks"`
	Titles   []string `mapstructure:"titles"`
	Snippets []string `mapstructure:"snippets"`
}

// DefaultSelectors returns the cascades for Google's current result markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Blocks:   []string{"div.tF2Cxc", "div.Gx5Zad", "div.g", "div[data-ved]"},
		Titles:   []string{"h3", "h2", "[role=heading]"},
		Snippets: []string{"div.VwiC3b", "span.aCOpRe", "div.s3v9rd"},
	}
}

// Extractor turns result pages into candidates.
type Extractor struct {
	selectors  Selectors
	snippetCap int
}

// New returns an Extractor. Empty cascades fall back to DefaultSelectors and
// a non-positive cap to DefaultSnippetCap.
func New(sel Selectors, snippetCap int) *Extractor {
	def := DefaultSelectors()
	if len(sel.Blocks) == 0 {
		sel.Blocks = def.Blocks
	}
	if len(sel.Titles) == 0 {
		sel.Titles = def.Titles
	}
	if len(sel.Snippets) == 0 {
		sel.Snippets = def.Snippets
	}
	if snippetCap <= 0 {
		snippetCap = DefaultSnippetCap
	}
	return &Extractor{selectors: sel, snippetCap: snippetCap}
}

// Extract parses body and returns the candidates of its result blocks in
// document order. It returns ErrNoBlocks when no block selector matched.
// The sequence is lazy: a block is only read when the consumer asks for it.
func (e *Extractor) Extract(body []byte) (iter.Seq[storage.Candidate], error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("extract: parse html: %w", err)
	}

	blocks := e.Blocks(doc)
	if blocks.Length() == 0 {
		return nil, ErrNoBlocks
	}

	return func(yield func(storage.Candidate) bool) {
		for _, block := range blocks.EachIter() {
			c, ok := e.candidate(block)
			if !ok {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}, nil
}

// Blocks returns the matches of the first block selector that finds any.
// The selection is empty when none of them do.
func (e *Extractor) Blocks(doc *goquery.Document) *goquery.Selection {
	return first(doc.Selection, e.selectors.Blocks)
}

// candidate reads one block. Blocks without an absolute link are skipped.
func (e *Extractor) candidate(block *goquery.Selection) (storage.Candidate, bool) {
	var link *goquery.Selection
	block.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if href, _ := a.Attr("href"); strings.HasPrefix(href, "http") {
			link = a
			return false
		}
		return true
	})
	if link == nil {
		return storage.Candidate{}, false
	}
	href, _ := link.Attr("href")

	// the heading normally sits inside the anchor; fall back to the whole block
	title := NoTitle
	heading := first(link, e.selectors.Titles)
	if heading.Length() == 0 {
		heading = first(block, e.selectors.Titles)
	}
	if heading.Length() > 0 {
		if t := strings.TrimSpace(heading.First().Text()); t != "" {
			title = t
		}
	}

	snippet := NoSnippet
	if sn := first(block, e.selectors.Snippets); sn.Length() > 0 {
		if t := joinText(sn.First()); t != "" {
			snippet = t
		}
	}

	return storage.Candidate{
		Title:   title,
		Link:    href,
		Snippet: storage.Truncate(snippet, e.snippetCap),
	}, true
}

func first(root *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if s := root.Find(sel); s.Length() > 0 {
			return s
		}
	}
	return root.Slice(0, 0)
}

// joinText concatenates the text nodes under s, each trimmed, separated by
// single spaces.
func joinText(s *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(sel *goquery.Selection) {
		sel.Contents().Each(func(_ int, c *goquery.Selection) {
			if goquery.NodeName(c) == "#text" {
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
				return
			}
			walk(c)
		})
	}
	walk(s)
	return strings.Join(parts, " ")
}
