package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_SplitsFileAndConsole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scraper.log")
	var console bytes.Buffer

	logger, closer, err := New(Options{File: path, Level: slog.LevelInfo, Console: &console})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logger.With("query", "q1").Info("fetching page", "page", 1)
	logger.Warn("search engine blocked the request", "reason", "RateLimit")
	logger.Debug("too chatty")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	file := string(data)

	if !strings.Contains(file, "fetching page") || !strings.Contains(file, "query=q1") {
		t.Errorf("expected info record with attrs in file:\n%s", file)
	}
	if !strings.Contains(file, "reason=RateLimit") {
		t.Errorf("expected warning in file:\n%s", file)
	}
	if strings.Contains(file, "too chatty") {
		t.Error("debug record must be filtered at info level")
	}

	out := console.String()
	if strings.Contains(out, "fetching page") {
		t.Error("info records must not reach the console")
	}
	if !strings.Contains(out, "search engine blocked the request") {
		t.Errorf("expected warning on console, got %q", out)
	}
}

func TestNew_NoFile(t *testing.T) {
	var console bytes.Buffer
	logger, closer, err := New(Options{Console: &console, ConsoleLevel: slog.LevelDebug})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closer.Close()

	logger.Debug("hello")
	if !strings.Contains(console.String(), "hello") {
		t.Errorf("expected debug on console, got %q", console.String())
	}
}

func TestNew_BadPath(t *testing.T) {
	if _, _, err := New(Options{File: filepath.Join(t.TempDir(), "missing", "x.log")}); err == nil {
		t.Error("expected error for unwritable log path")
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
