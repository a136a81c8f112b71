package scraper

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FranksOps/igmention/internal/bypass"
	"github.com/FranksOps/igmention/internal/fingerprint"
	"github.com/FranksOps/igmention/internal/metrics"
	"github.com/FranksOps/igmention/internal/serp"
	"github.com/FranksOps/igmention/internal/storage"
	"github.com/FranksOps/igmention/pkg/httpclient"
	"github.com/FranksOps/igmention/pkg/proxy"
	"github.com/FranksOps/igmention/pkg/useragent"
	"github.com/google/uuid"
)

type contextKey string

const proxyKey contextKey = "proxy_url"

// maxBody caps how much of a result page is read.
const maxBody = 8 << 20

// DefaultHeaders are sent with every request next to the random User-Agent.
var DefaultHeaders = map[string]string{
	"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language": "en-US,en;q=0.5",
	"Connection":      "keep-alive",
}

// FetchConfig configures a Fetcher.
type FetchConfig struct {
	Engine       serp.Engine
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	ProxyPool    *proxy.Pool
	UAPool       *useragent.Pool
	// Headers replaces DefaultHeaders when non-nil.
	Headers     map[string]string
	Fingerprint fingerprint.Profile
	Retry       httpclient.RetryPolicy
	// Detectors replaces bypass.DefaultDetectors when non-nil.
	Detectors []bypass.Detector
	// RootCAs overrides system roots; used by tests with local TLS servers.
	RootCAs *x509.CertPool
}

// Fetcher retrieves search result pages. It holds a single client so
// connections and cookies are reused for the lifetime of a run.
type Fetcher struct {
	config    FetchConfig
	client    *httpclient.Client
	transport *http.Transport
}

// NewFetcher initializes a Fetcher, filling defaults for zero config values.
func NewFetcher(cfg FetchConfig) (*Fetcher, error) {
	if cfg.Engine == nil {
		cfg.Engine = serp.NewGoogle("", "", 0)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = 5
	}
	if cfg.UAPool == nil {
		cfg.UAPool = useragent.NewPool(nil)
	}
	if cfg.Headers == nil {
		cfg.Headers = DefaultHeaders
	}
	if cfg.Detectors == nil {
		cfg.Detectors = bypass.DefaultDetectors()
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = fingerprint.ProfileChrome
	}

	// The proxy is chosen per request and handed to the transport through
	// the request context, so one transport serves the whole run.
	proxyFunc := func(req *http.Request) (*url.URL, error) {
		if u, ok := req.Context().Value(proxyKey).(*url.URL); ok && u != nil {
			return u, nil
		}
		return nil, nil
	}

	transport, err := fingerprint.Transport(fingerprint.Options{
		Profile: cfg.Fingerprint,
		Proxy:   proxyFunc,
		RootCAs: cfg.RootCAs,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: transport: %w", err)
	}

	client, err := httpclient.New(httpclient.Config{
		Timeout:      cfg.Timeout,
		MaxRedirects: cfg.MaxRedirects,
		UseCookieJar: cfg.UseCookieJar,
		Transport:    transport,
		Retry:        cfg.Retry,
	})
	if err != nil {
		return nil, fmt.Errorf("scraper: client: %w", err)
	}

	return &Fetcher{
		config:    cfg,
		client:    client,
		transport: transport,
	}, nil
}

// EngineName reports the search engine the fetcher queries.
func (f *Fetcher) EngineName() string {
	return f.config.Engine.Name()
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	f.transport.CloseIdleConnections()
}

// Fetch requests one result page for query. Network and HTTP failures are
// reported on the returned Page's Error field; the error return is reserved
// for requests that could not be built at all.
func (f *Fetcher) Fetch(ctx context.Context, query string, page int) (*storage.Page, error) {
	target, err := f.config.Engine.PageURL(query, page)
	if err != nil {
		return nil, fmt.Errorf("scraper: build url: %w", err)
	}

	start := time.Now()
	result := &storage.Page{
		ID:        uuid.New().String(),
		Query:     query,
		Index:     page,
		URL:       target,
		FetchedAt: start.UTC(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("scraper: new request: %w", err)
	}

	var activeProxy *url.URL
	if f.config.ProxyPool != nil {
		activeProxy = f.config.ProxyPool.Random()
	}
	if activeProxy != nil {
		req = req.WithContext(context.WithValue(req.Context(), proxyKey, activeProxy))
	}

	for k, v := range f.config.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("User-Agent", f.config.UAPool.Random())

	resp, err := f.client.Do(req.Context(), req)
	if err != nil {
		result.Duration = time.Since(start)

		var se *httpclient.StatusError
		if errors.As(err, &se) {
			// the server answered, it just kept answering with a retryable status
			f.markProxy(activeProxy, true)
			result.StatusCode = se.StatusCode
			result.Headers = se.Header
			result.Body = se.Body
			if !bypass.Analyze(result, f.config.Detectors) {
				result.Error = err.Error()
			}
			return result, nil
		}

		f.markProxy(activeProxy, false)
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result, nil
	}
	defer resp.Body.Close()

	f.markProxy(activeProxy, true)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	result.StatusCode = resp.StatusCode
	result.Headers = resp.Header
	result.Body = body
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read body: %v", err)
		return result, nil
	}

	if !bypass.Analyze(result, f.config.Detectors) && resp.StatusCode >= http.StatusBadRequest {
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return result, nil
}

func (f *Fetcher) markProxy(u *url.URL, ok bool) {
	if u == nil || f.config.ProxyPool == nil {
		return
	}
	if ok {
		_ = f.config.ProxyPool.MarkSuccess(u)
		return
	}
	_ = f.config.ProxyPool.MarkFailure(u)
	metrics.ProxyFailures.WithLabelValues(u.Redacted()).Inc()
}

