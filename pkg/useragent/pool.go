package useragent

import (
	"math/rand/v2"
	"sync"
)

// DefaultPool is the desktop browser set used when no agents are configured.
var DefaultPool = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

// Pool hands out User-Agent strings chosen uniformly at random.
type Pool struct {
	mu  sync.Mutex
	uas []string
	rnd *rand.Rand
}

// NewPool creates a pool from uas. An empty slice falls back to DefaultPool.
func NewPool(uas []string) *Pool {
	return NewPoolWithSource(uas, rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewPoolWithSource is NewPool with a caller-provided random source, which
// makes the selection order reproducible in tests.
func NewPoolWithSource(uas []string, src rand.Source) *Pool {
	if len(uas) == 0 {
		uas = DefaultPool
	}
	copied := make([]string, len(uas))
	copy(copied, uas)
	return &Pool{
		uas: copied,
		rnd: rand.New(src),
	}
}

// Random returns one agent from the pool. It is safe for concurrent use.
func (p *Pool) Random() string {
	if len(p.uas) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.IntN(len(p.uas))]
}

// All returns a copy of the configured agents.
func (p *Pool) All() []string {
	copied := make([]string, len(p.uas))
	copy(copied, p.uas)
	return copied
}
