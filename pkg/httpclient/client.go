package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"
)

// DefaultRetryStatuses are the server-side statuses retried by default.
var DefaultRetryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// maxErrorBody caps how much of a failing response is kept on StatusError.
const maxErrorBody = 1 << 20

// RetryPolicy controls how idempotent requests are retried.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt. Zero disables retry.
	MaxRetries int
	// BaseDelay is the delay before the first retry; it doubles per retry.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff, including Retry-After hints.
	MaxDelay time.Duration
	// Jitter randomizes each delay by +/- Jitter*delay (0.0 to 1.0).
	Jitter float64
	// Statuses that trigger a retry. Nil means DefaultRetryStatuses.
	Statuses []int
}

// Backoff returns the delay before retry number attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 0 || p.BaseDelay <= 0 {
		return 0
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter > 0 {
		j := math.Min(p.Jitter, 1)
		delay += delay * j * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func (p RetryPolicy) retryable(status int) bool {
	statuses := p.Statuses
	if statuses == nil {
		statuses = DefaultRetryStatuses
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

// StatusError is returned when retries are exhausted on a retryable status.
// It keeps the last response so callers can inspect what the server sent.
type StatusError struct {
	StatusCode int
	Attempts   int
	Header     http.Header
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httpclient: status %d after %d attempts", e.StatusCode, e.Attempts)
}

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	UseCookieJar bool
	// Transport, e.g. for proxies or uTLS fingerprinting.
	Transport http.RoundTripper
	Retry     RetryPolicy
}

// Client wraps http.Client with timeouts, a redirect policy, cookie
// persistence and bounded retry.
type Client struct {
	*http.Client
	retry RetryPolicy
	sleep func(context.Context, time.Duration) error
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	if cfg.MaxRedirects >= 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("httpclient: stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.UseCookieJar {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("httpclient: cookie jar: %w", err)
		}
		c.Jar = jar
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c, retry: cfg.Retry, sleep: sleepCtx}, nil
}

// Do executes req under ctx. GET and HEAD requests are retried on transport
// errors and on the policy's statuses; other methods are sent once.
// When retries run out on a retryable status, Do returns a *StatusError.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	idempotent := req.Method == http.MethodGet || req.Method == http.MethodHead || req.Method == ""
	maxRetries := c.retry.MaxRetries
	if !idempotent || maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		resp, err := c.Client.Do(req.Clone(ctx))
		if err != nil {
			if ctx.Err() != nil || attempt >= maxRetries {
				return nil, fmt.Errorf("httpclient: %w", err)
			}
			if err := c.sleep(ctx, c.retry.Backoff(attempt+1)); err != nil {
				return nil, fmt.Errorf("httpclient: %w", err)
			}
			continue
		}

		if !c.retry.retryable(resp.StatusCode) {
			return resp, nil
		}

		if attempt >= maxRetries {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			resp.Body.Close()
			return nil, &StatusError{
				StatusCode: resp.StatusCode,
				Attempts:   attempt + 1,
				Header:     resp.Header,
				Body:       body,
			}
		}

		delay := c.retry.Backoff(attempt + 1)
		if hint, ok := retryAfter(resp.Header); ok {
			delay = hint
			if c.retry.MaxDelay > 0 && delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()

		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("httpclient: %w", err)
		}
	}
}

// retryAfter parses a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
