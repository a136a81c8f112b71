package jsonbackend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/FranksOps/igmention/internal/storage"
)

// WriteResults writes candidates to path as a pretty-printed UTF-8 JSON array.
// The file is written to a temporary sibling first and renamed into place, so
// a failed write never leaves a truncated results file behind. A nil slice is
// written as [].
func WriteResults(path string, results []storage.Candidate) error {
	if results == nil {
		results = []storage.Candidate{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("jsonbackend: encode results: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("jsonbackend: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonbackend: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonbackend: close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("jsonbackend: chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("jsonbackend: rename into %s: %w", path, err)
	}
	return nil
}

// ReadResults loads a results file written by WriteResults.
func ReadResults(path string) ([]storage.Candidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jsonbackend: read %s: %w", path, err)
	}
	var results []storage.Candidate
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("jsonbackend: decode %s: %w", path, err)
	}
	return results, nil
}

// ensure ndjsonBackend implements storage.Backend
var _ storage.Backend = (*ndjsonBackend)(nil)

type ndjsonBackend struct {
	mu   sync.Mutex
	file *os.File
}

// New creates an NDJSON-backed storage.Backend that appends one record per line.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("jsonbackend: open %s: %w", filePath, err)
	}
	return &ndjsonBackend{file: f}, nil
}

func (b *ndjsonBackend) Save(ctx context.Context, rec *storage.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("jsonbackend: encode record: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("jsonbackend: append record: %w", err)
	}
	return nil
}

func (b *ndjsonBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("jsonbackend: seek: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	scanner := bufio.NewScanner(b.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var matched []*storage.Record
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var r storage.Record
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, fmt.Errorf("jsonbackend: decode record: %w", err)
		}

		if filter.RunID != "" && r.RunID != filter.RunID {
			continue
		}
		if filter.Link != "" && r.Link != filter.Link {
			continue
		}
		if filter.Since != nil && r.FoundAt.Before(*filter.Since) {
			continue
		}
		matched = append(matched, &r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("jsonbackend: scan: %w", err)
	}

	// file order is append order; newest first means reversed
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	return storage.Paginate(matched, filter), nil
}

func (b *ndjsonBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
