// Package artifact saves result pages that could not be used so they can be
// inspected by hand.
package artifact

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/html"
)

// Kind names why a page was saved.
type Kind string

const (
	// KindBlock is the raw body of a soft-blocked response.
	KindBlock Kind = "block"
	// KindPage is a page where no result block matched.
	KindPage Kind = "page"
)

const maxNameLen = 80

// Writer dumps pages under Dir. The zero value writes to the working directory.
type Writer struct {
	Dir string
}

// FileName returns the artifact name for a query and zero-based page index.
// When sanitizing changed the query, a short hash of the raw query is added
// so distinct queries never share a file.
func FileName(kind Kind, query string, page int) string {
	name := Sanitize(query)
	if name != query {
		name = fmt.Sprintf("%s_%08x", name, uint32(xxhash.Sum64String(query)))
	}
	return fmt.Sprintf("debug_%s_%s_%d.html", kind, name, page+1)
}

// Dump writes body and returns the path written. KindPage bodies are parsed
// and re-rendered so the saved file is well formed; block bodies are kept
// byte for byte.
func (w *Writer) Dump(query string, page int, kind Kind, body []byte) (string, error) {
	dir := w.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("artifact: create dir: %w", err)
	}

	out := body
	if kind == KindPage {
		if rendered, err := Render(body); err == nil {
			out = rendered
		}
	}

	path := filepath.Join(dir, FileName(kind, query, page))
	if err := os.WriteFile(path, out, 0644); err != nil {
		return "", fmt.Errorf("artifact: write %s: %w", path, err)
	}
	return path, nil
}

// Render parses body as HTML and serializes the resulting tree.
func Render(body []byte) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("artifact: parse html: %w", err)
	}
	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("artifact: render html: %w", err)
	}
	return buf.Bytes(), nil
}

// Sanitize makes s safe to use inside a file name. Path separators, reserved
// characters, whitespace and control characters become "_", runs of "_" are
// collapsed and the result is capped in length.
func Sanitize(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range s {
		if isUnsafe(r) {
			r = '_'
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}

	name := strings.Trim(b.String(), "_.")
	if runes := []rune(name); len(runes) > maxNameLen {
		name = strings.TrimRight(string(runes[:maxNameLen]), "_.")
	}
	if name == "" {
		return "query"
	}
	return name
}

func isUnsafe(r rune) bool {
	switch r {
	case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
		return true
	}
	return unicode.IsSpace(r) || unicode.IsControl(r)
}
