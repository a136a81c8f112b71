package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// Pause blocks for a random duration drawn uniformly from [Min, Max].
// It is used to space out requests so the remote end sees a human cadence.
// A Pause is safe for concurrent use.
type Pause struct {
	min, max time.Duration

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewPause creates a Pause. Negative bounds are clamped to zero and a max
// below min is raised to min.
func NewPause(min, max time.Duration) *Pause {
	return NewPauseWithSource(min, max, rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewPauseWithSource is NewPause with an explicit random source.
func NewPauseWithSource(min, max time.Duration, src rand.Source) *Pause {
	if min < 0 {
		min = 0
	}
	if max < min {
		max = min
	}
	return &Pause{min: min, max: max, rnd: rand.New(src)}
}

// Next draws the next duration without sleeping.
func (p *Pause) Next() time.Duration {
	if p.max == p.min {
		return p.min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.min + time.Duration(p.rnd.Int64N(int64(p.max-p.min)+1))
}

// Wait sleeps for the next drawn duration or until ctx is done. It returns
// the duration it intended to sleep so callers can log it.
func (p *Pause) Wait(ctx context.Context) (time.Duration, error) {
	d := p.Next()
	if d <= 0 {
		return 0, ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return d, ctx.Err()
	case <-timer.C:
		return d, nil
	}
}
