package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/FranksOps/igmention/internal/config"
	"github.com/FranksOps/igmention/internal/storage"
	"github.com/FranksOps/igmention/internal/storage/jsonbackend"
)

// execute runs the command tree with args. Every test passes the flags it
// relies on, since flag values persist on the package-level commands.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSearch_PlaceholderUsernameRejectedBeforeNetwork(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	dir := t.TempDir()
	t.Setenv("IGMENTION_SEARCH_ENDPOINT", srv.URL+"/search")

	out, err := execute(t, "search", config.PlaceholderUsername,
		"--storage-driver", "none",
		"--log-file", filepath.Join(dir, "scraper.log"))
	if !errors.Is(err, config.ErrMissingUsername) {
		t.Fatalf("expected ErrMissingUsername, got %v", err)
	}
	if hits.Load() != 0 {
		t.Errorf("expected no requests, got %d", hits.Load())
	}
	if strings.Contains(out, "Starting Instagram mention search") {
		t.Errorf("banner printed for a rejected run:\n%s", out)
	}
}

func TestReport_RequiresFileOrSink(t *testing.T) {
	_, err := execute(t, "report", "--storage-driver", "none")
	if err == nil || !strings.Contains(err.Error(), "give a results file or configure a storage driver") {
		t.Fatalf("expected the sink guard error, got %v", err)
	}
}

func TestReport_FromResultsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alice_instagram_results.json")
	results := []storage.Candidate{
		{Title: "alice on Instagram", Link: "https://www.instagram.com/p/AAA/", Snippet: "hi"},
	}
	if err := jsonbackend.WriteResults(path, results); err != nil {
		t.Fatalf("write results: %v", err)
	}

	out, err := execute(t, "report", path, "--report-format", "text", "--storage-driver", "none")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "Found 1 potential result(s):") || !strings.Contains(out, "https://www.instagram.com/p/AAA/") {
		t.Errorf("unexpected report:\n%s", out)
	}
}

func TestReport_FromSink(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "hits.ndjson")
	sink, err := openSink(context.Background(), config.StorageConfig{Driver: "ndjson", DSN: dsn})
	if err != nil {
		t.Fatalf("open sink: %v", err)
	}
	rec := &storage.Record{
		ID:        "rec-1",
		RunID:     "run-1",
		Query:     "q",
		Page:      1,
		Candidate: storage.Candidate{Title: "t", Link: "https://instagram.com/p/BBB/", Snippet: "s"},
	}
	if err := sink.Save(context.Background(), rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, err := execute(t, "report", "--storage-driver", "ndjson", "--storage-dsn", dsn, "--report-format", "text", "--run-id", "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "https://instagram.com/p/BBB/") {
		t.Errorf("expected the sink record in the report:\n%s", out)
	}
}

func TestOpenSink(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		driver  string
		dsn     string
		wantNil bool
		wantErr bool
	}{
		{driver: "", wantNil: true},
		{driver: "none", wantNil: true},
		{driver: "ndjson", dsn: filepath.Join(dir, "hits.ndjson")},
		{driver: "csv", dsn: filepath.Join(dir, "hits.csv")},
		{driver: "sqlite", dsn: filepath.Join(dir, "hits.db")},
		{driver: "mongo", dsn: "x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			sink, err := openSink(context.Background(), config.StorageConfig{Driver: tt.driver, DSN: tt.dsn})
			if (err != nil) != tt.wantErr {
				t.Fatalf("openSink(%q) error = %v, wantErr %v", tt.driver, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (sink == nil) != tt.wantNil {
				t.Fatalf("openSink(%q) returned %v, want nil %v", tt.driver, sink, tt.wantNil)
			}
			if sink != nil {
				if err := sink.Close(); err != nil {
					t.Errorf("close: %v", err)
				}
			}
		})
	}
}
