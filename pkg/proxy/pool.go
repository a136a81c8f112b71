package proxy

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when marking a proxy that was never added.
var ErrNotFound = errors.New("proxy: not found in pool")

// Proxy is a single proxy endpoint with health tracking.
type Proxy struct {
	URL           *url.URL
	Failures      int
	Successes     int
	LastUsed      time.Time
	DisabledUntil time.Time
}

func (p *Proxy) available(now time.Time) bool {
	return p.DisabledUntil.IsZero() || now.After(p.DisabledUntil)
}

// Config defines settings for the Pool.
type Config struct {
	// MaxFailures before a proxy is benched for Cooldown.
	MaxFailures int
	Cooldown    time.Duration
	// Source seeds proxy selection. Nil uses a random seed.
	Source rand.Source
}

// Pool picks proxies at random among the ones not cooling down.
type Pool struct {
	mu          sync.Mutex
	proxies     []*Proxy
	maxFailures int
	cooldown    time.Duration
	rnd         *rand.Rand
}

// NewPool creates an empty pool. Zero config values get defaults.
func NewPool(cfg Config) *Pool {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	if cfg.Source == nil {
		cfg.Source = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Pool{
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
		rnd:         rand.New(cfg.Source),
	}
}

// LoadFile reads proxies from a file, one URL per line.
// Blank lines and lines starting with '#' are ignored.
func (p *Pool) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("proxy: open %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var urls []string
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("proxy: read %s: %w", path, err)
	}

	return p.Add(urls...)
}

// Add parses raw URL strings and adds them to the pool. A missing scheme
// defaults to http.
func (p *Pool) Add(rawURLs ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, raw := range rawURLs {
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("proxy: parse %q: %w", raw, err)
		}
		if u.Host == "" {
			return fmt.Errorf("proxy: %q has no host", raw)
		}
		p.proxies = append(p.proxies, &Proxy{URL: u})
	}
	return nil
}

// Len reports how many proxies were added, healthy or not.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Random returns a uniformly chosen proxy among those not cooling down, or
// nil when the pool is empty or every proxy is benched.
func (p *Pool) Random() *url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	healthy := make([]*Proxy, 0, len(p.proxies))
	for _, prx := range p.proxies {
		if !prx.DisabledUntil.IsZero() && now.After(prx.DisabledUntil) {
			prx.DisabledUntil = time.Time{}
			prx.Failures = 0
		}
		if prx.available(now) {
			healthy = append(healthy, prx)
		}
	}
	if len(healthy) == 0 {
		return nil
	}

	prx := healthy[p.rnd.IntN(len(healthy))]
	prx.LastUsed = now
	return prx.URL
}

// MarkSuccess records a successful request through proxyURL.
func (p *Pool) MarkSuccess(proxyURL *url.URL) error {
	if proxyURL == nil {
		return errors.New("proxy: nil url")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prx := p.find(proxyURL)
	if prx == nil {
		return ErrNotFound
	}
	prx.Successes++
	if prx.Failures > 0 {
		prx.Failures--
	}
	return nil
}

// MarkFailure records a failed request through proxyURL. Reaching
// MaxFailures benches the proxy for the cooldown period.
func (p *Pool) MarkFailure(proxyURL *url.URL) error {
	if proxyURL == nil {
		return errors.New("proxy: nil url")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	prx := p.find(proxyURL)
	if prx == nil {
		return ErrNotFound
	}
	prx.Failures++
	if prx.Failures >= p.maxFailures {
		prx.DisabledUntil = time.Now().Add(p.cooldown)
	}
	return nil
}

// find must be called with the lock held.
func (p *Pool) find(u *url.URL) *Proxy {
	target := u.String()
	for _, prx := range p.proxies {
		if prx.URL.String() == target {
			return prx
		}
	}
	return nil
}
