package ratelimit

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"
)

func TestPause_ZeroDoesNotBlock(t *testing.T) {
	p := NewPause(0, 0)

	start := time.Now()
	d, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 0 {
		t.Errorf("expected zero duration, got %v", d)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("zero pause should not block")
	}
}

func TestPause_WithinBounds(t *testing.T) {
	min, max := 8*time.Second, 20*time.Second
	p := NewPauseWithSource(min, max, rand.NewPCG(1, 1))

	for i := 0; i < 1000; i++ {
		d := p.Next()
		if d < min || d > max {
			t.Fatalf("draw %v outside [%v, %v]", d, min, max)
		}
	}
}

func TestPause_ClampsBounds(t *testing.T) {
	p := NewPause(-time.Second, -2*time.Second)
	if d := p.Next(); d != 0 {
		t.Errorf("expected clamped pause to be 0, got %v", d)
	}

	p = NewPause(50*time.Millisecond, 10*time.Millisecond)
	if d := p.Next(); d != 50*time.Millisecond {
		t.Errorf("expected max raised to min, got %v", d)
	}
}

func TestPause_Wait(t *testing.T) {
	p := NewPause(20*time.Millisecond, 30*time.Millisecond)

	start := time.Now()
	d, err := p.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	elapsed := time.Since(start)
	if elapsed < 20*time.Millisecond {
		t.Errorf("expected to sleep at least 20ms, slept %v", elapsed)
	}
	if d < 20*time.Millisecond || d > 30*time.Millisecond {
		t.Errorf("reported duration %v outside bounds", d)
	}
}

func TestPause_ContextCancel(t *testing.T) {
	p := NewPause(time.Hour, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := p.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("cancel did not interrupt the pause")
	}
}
