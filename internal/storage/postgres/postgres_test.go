package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/FranksOps/igmention/internal/storage"
	"github.com/google/uuid"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if IGMENTION_TEST_PG_DSN is set
	dsn := os.Getenv("IGMENTION_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: IGMENTION_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	runID := uuid.NewString()
	rec := &storage.Record{
		ID:      uuid.NewString(),
		RunID:   runID,
		Query:   `"leanbeefpatty" site:instagram.com`,
		Page:    0,
		FoundAt: time.Now().UTC(),
		Candidate: storage.Candidate{
			Title:   "leanbeefpatty shared a photo",
			Link:    "https://www.instagram.com/p/" + runID + "/",
			Snippet: "snippet",
		},
	}
	if err := b.Save(ctx, rec); err != nil {
		t.Fatalf("Failed to save record: %v", err)
	}

	results, err := b.Query(ctx, storage.Filter{RunID: runID})
	if err != nil {
		t.Fatalf("Failed to query records: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	got := results[0]
	if got.ID != rec.ID || got.Candidate != rec.Candidate {
		t.Errorf("Expected %+v, got %+v", rec, got)
	}
	if got.FoundAt.Unix() != rec.FoundAt.Unix() {
		t.Errorf("Expected FoundAt %v, got %v", rec.FoundAt, got.FoundAt)
	}

	byLink, err := b.Query(ctx, storage.Filter{Link: rec.Link, Limit: 5})
	if err != nil {
		t.Fatalf("Failed to query by link: %v", err)
	}
	if len(byLink) != 1 {
		t.Fatalf("Expected 1 result by link, got %d", len(byLink))
	}
}
