package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/FranksOps/igmention/internal/storage"
)

func TestMetricsServer(t *testing.T) {
	srv, err := Start(0, nil)
	if err != nil {
		t.Fatalf("failed to start metrics server: %v", err)
	}
	defer srv.Stop(context.Background())

	RecordPage(&storage.Page{
		StatusCode: 200,
		Body:       []byte("hello world"),
		Duration:   time.Second,
	})
	RecordPage(&storage.Page{
		StatusCode:  429,
		Blocked:     true,
		BlockReason: "RateLimit",
		Duration:    time.Second,
	})
	RecordPage(&storage.Page{Error: "request failed: dial tcp: refused"})
	CandidatesKept.Inc()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	output := string(body)

	for _, want := range []string{
		`igmention_pages_fetched_total{status="200"}`,
		`igmention_pages_fetched_total{status="error"}`,
		`igmention_pages_blocked_total{reason="RateLimit"}`,
		`igmention_fetch_duration_seconds_bucket`,
		`igmention_candidates_kept_total`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}

func TestRecordPage_Nil(t *testing.T) {
	RecordPage(nil)
}

func TestServer_StopNil(t *testing.T) {
	var s *Server
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
