package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/FranksOps/igmention/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "igmention_pages_fetched_total",
			Help: "Total number of result pages requested",
		},
		[]string{"status"},
	)

	PagesBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "igmention_pages_blocked_total",
			Help: "Result pages answered with a challenge or rate limit",
		},
		[]string{"reason"},
	)

	PagesEmpty = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "igmention_pages_without_blocks_total",
			Help: "Result pages where no result block selector matched",
		},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "igmention_fetch_duration_seconds",
			Help:    "Duration of result page fetches in seconds, retries included",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	CandidatesKept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "igmention_candidates_kept_total",
			Help: "Candidates that passed the filters and were new to the run",
		},
	)

	CandidatesDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "igmention_candidates_duplicate_total",
			Help: "Candidates that passed the filters but were already in the result set",
		},
	)

	ProxyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "igmention_proxy_failures_total",
			Help: "Total number of proxy failures during fetches",
		},
		[]string{"proxy_url"},
	)
)

// RecordPage updates the fetch metrics for one page.
func RecordPage(p *storage.Page) {
	if p == nil {
		return
	}

	status := strconv.Itoa(p.StatusCode)
	if p.Error != "" && p.StatusCode == 0 {
		status = "error"
	}
	PagesFetched.WithLabelValues(status).Inc()
	FetchDuration.Observe(p.Duration.Seconds())
	if p.Blocked {
		PagesBlocked.WithLabelValues(p.BlockReason).Inc()
	}
}

// Server encapsulates an HTTP server for Prometheus metrics.
type Server struct {
	srv  *http.Server
	addr string
}

// Start listens on port (0 picks a free one) and serves /metrics in the
// background.
func Start(port int, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("metrics: listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "err", err)
		}
	}()

	return &Server{srv: srv, addr: ln.Addr().String()}, nil
}

// Addr is the address the server is listening on.
func (s *Server) Addr() string { return s.addr }

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
