package csvbackend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/igmention/internal/storage"
)

func TestCSVBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")

	b, err := New(path)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()

	rec1 := &storage.Record{
		ID: "csv1", RunID: "run1", Query: `"leanbeefpatty" site:instagram.com`, Page: 0,
		FoundAt: now.Add(-2 * time.Hour),
		Candidate: storage.Candidate{
			Title:   "leanbeefpatty, on Instagram",
			Link:    "https://www.instagram.com/p/A/",
			Snippet: "a snippet with \"quotes\", commas\nand a newline",
		},
	}
	rec2 := &storage.Record{
		ID: "csv2", RunID: "run1", Query: "from:leanbeefpatty site:instagram.com", Page: 1,
		FoundAt:   now.Add(-1 * time.Hour),
		Candidate: storage.Candidate{Title: "t2", Link: "https://www.instagram.com/p/B/", Snippet: "s2"},
	}
	if err := b.Save(ctx, rec1); err != nil {
		t.Fatalf("failed to save rec1: %v", err)
	}
	if err := b.Save(ctx, rec2); err != nil {
		t.Fatalf("failed to save rec2: %v", err)
	}

	all, err := b.Query(ctx, storage.Filter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
	if all[0].ID != "csv2" {
		t.Errorf("expected newest first, got %s", all[0].ID)
	}
	if all[1].Snippet != rec1.Snippet || all[1].Title != rec1.Title {
		t.Errorf("quoted fields did not survive: %+v", all[1])
	}
	if !all[1].FoundAt.Equal(rec1.FoundAt) {
		t.Errorf("expected found_at %v, got %v", rec1.FoundAt, all[1].FoundAt)
	}

	byLink, _ := b.Query(ctx, storage.Filter{Link: "https://www.instagram.com/p/A/"})
	if len(byLink) != 1 || byLink[0].Page != 0 {
		t.Errorf("unexpected link filter result %+v", byLink)
	}

	limited, _ := b.Query(ctx, storage.Filter{Limit: 1})
	if len(limited) != 1 || limited[0].ID != "csv2" {
		t.Errorf("unexpected limit result %+v", limited)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	// reopening must not duplicate the header
	b2, err := New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer b2.Close()

	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "id,run_id,query"); n != 1 {
		t.Errorf("expected a single header row, found %d", n)
	}
	again, _ := b2.Query(ctx, storage.Filter{})
	if len(again) != 2 {
		t.Errorf("expected records to persist across reopen, got %d", len(again))
	}
}

func TestCSVBackend_Empty(t *testing.T) {
	b, err := New(filepath.Join(t.TempDir(), "empty.csv"))
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	defer b.Close()

	got, err := b.Query(context.Background(), storage.Filter{})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %d", len(got))
	}
}
