package proxy

import (
	"errors"
	"math/rand/v2"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPool_AddDefaultsScheme(t *testing.T) {
	pool := NewPool(Config{})

	err := pool.Add("127.0.0.1:8080", "http://127.0.0.1:8081", "socks5://127.0.0.1:9050")
	if err != nil {
		t.Fatalf("unexpected error adding proxies: %v", err)
	}
	if pool.Len() != 3 {
		t.Fatalf("expected 3 proxies, got %d", pool.Len())
	}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[pool.Random().String()] = true
	}
	for _, want := range []string{"http://127.0.0.1:8080", "http://127.0.0.1:8081", "socks5://127.0.0.1:9050"} {
		if !seen[want] {
			t.Errorf("expected %s to be selected at least once, saw %v", want, seen)
		}
	}
}

func TestPool_RandomReproducible(t *testing.T) {
	newPool := func() *Pool {
		p := NewPool(Config{Source: rand.NewPCG(3, 4)})
		if err := p.Add("http://a", "http://b", "http://c"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return p
	}
	p1, p2 := newPool(), newPool()

	for i := 0; i < 10; i++ {
		if a, b := p1.Random().String(), p2.Random().String(); a != b {
			t.Fatalf("iteration %d: %s != %s", i, a, b)
		}
	}
}

func TestPool_HealthTracking(t *testing.T) {
	pool := NewPool(Config{
		MaxFailures: 2,
		Cooldown:    20 * time.Millisecond,
	})
	if err := pool.Add("http://a", "http://b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	uA, _ := url.Parse("http://a")
	_ = pool.MarkFailure(uA)
	_ = pool.MarkFailure(uA)

	for i := 0; i < 20; i++ {
		if got := pool.Random(); got.String() != "http://b" {
			t.Fatalf("expected only http://b while a cools down, got %v", got)
		}
	}

	time.Sleep(30 * time.Millisecond)

	seenA := false
	for i := 0; i < 200; i++ {
		if pool.Random().String() == "http://a" {
			seenA = true
			break
		}
	}
	if !seenA {
		t.Errorf("expected http://a to return after cooldown")
	}
}

func TestPool_SuccessOffsetsFailure(t *testing.T) {
	pool := NewPool(Config{MaxFailures: 2, Cooldown: time.Hour})
	_ = pool.Add("http://a")

	uA, _ := url.Parse("http://a")
	_ = pool.MarkFailure(uA)
	_ = pool.MarkSuccess(uA)
	_ = pool.MarkFailure(uA)

	if pool.Random() == nil {
		t.Errorf("expected proxy to stay enabled after success offset a failure")
	}
}

func TestPool_AllDisabled(t *testing.T) {
	pool := NewPool(Config{
		MaxFailures: 1,
		Cooldown:    time.Hour,
	})
	_ = pool.Add("http://a")

	_ = pool.MarkFailure(pool.Random())

	if u := pool.Random(); u != nil {
		t.Errorf("expected nil when all proxies disabled, got %v", u)
	}
}

func TestPool_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proxies.txt")

	content := `
# some comment
http://proxy1.com
proxy2.com:80

socks5://proxy3.com:1080
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write proxy file: %v", err)
	}

	pool := NewPool(Config{})
	if err := pool.LoadFile(path); err != nil {
		t.Fatalf("failed to load file: %v", err)
	}
	if pool.Len() != 3 {
		t.Errorf("expected 3 proxies, got %d", pool.Len())
	}
}

func TestPool_LoadFileMissing(t *testing.T) {
	pool := NewPool(Config{})
	if err := pool.LoadFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPool_MarkUnknown(t *testing.T) {
	pool := NewPool(Config{})
	_ = pool.Add("http://a")

	uUnknown, _ := url.Parse("http://unknown")

	if err := pool.MarkSuccess(uUnknown); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound marking success, got %v", err)
	}
	if err := pool.MarkFailure(uUnknown); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound marking failure, got %v", err)
	}
	if err := pool.MarkFailure(nil); err == nil {
		t.Errorf("expected error for nil url")
	}
}

func TestPool_Empty(t *testing.T) {
	pool := NewPool(Config{})
	if u := pool.Random(); u != nil {
		t.Errorf("expected nil on empty pool, got %v", u)
	}
}
