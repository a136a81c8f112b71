package serp

import (
	"errors"
	"net/url"
	"testing"
)

func TestBuildQueries_Defaults(t *testing.T) {
	got, err := BuildQueries("leanbeefpatty", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		`"leanbeefpatty" site:instagram.com`,
		`from:leanbeefpatty site:instagram.com`,
		`"leanbeefpatty" commented on site:instagram.com`,
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d queries, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("query %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuildQueries_DedupAndBlank(t *testing.T) {
	got, err := BuildQueries(" alice ", []string{"{username}", "  ", "{username}", "@{username} {username}"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != "alice" || got[1] != "@alice alice" {
		t.Errorf("unexpected queries %v", got)
	}
}

func TestBuildQueries_EmptyUsername(t *testing.T) {
	if _, err := BuildQueries("   ", nil); !errors.Is(err, ErrEmptyUsername) {
		t.Errorf("expected ErrEmptyUsername, got %v", err)
	}
}

func TestGoogle_PageURL(t *testing.T) {
	g := NewGoogle("", "", 0)

	raw, err := g.PageURL(`"leanbeefpatty" site:instagram.com`, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("invalid url %q: %v", raw, err)
	}
	if u.Scheme != "https" || u.Host != "www.google.com" || u.Path != "/search" {
		t.Errorf("unexpected endpoint %s", raw)
	}

	q := u.Query()
	checks := map[string]string{
		"q":      `"leanbeefpatty" site:instagram.com`,
		"start":  "20",
		"hl":     "en",
		"num":    "10",
		"filter": "0",
	}
	for k, want := range checks {
		if got := q.Get(k); got != want {
			t.Errorf("param %s = %q, want %q", k, got, want)
		}
	}
}

func TestGoogle_PageURLCustom(t *testing.T) {
	g := &Google{Endpoint: "http://127.0.0.1:9999/search?safe=off", Locale: "de", PageSize: 20, KeepSimilar: true}

	raw, err := g.PageURL("x", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, _ := url.Parse(raw)
	q := u.Query()
	if q.Get("safe") != "off" || q.Get("start") != "0" || q.Get("num") != "20" || q.Get("hl") != "de" || q.Get("filter") != "1" {
		t.Errorf("unexpected params %v", q)
	}

	if _, err := g.PageURL("x", -1); err == nil {
		t.Error("expected error for negative page")
	}
}
