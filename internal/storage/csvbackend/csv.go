package csvbackend

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/igmention/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// columns fixes the CSV column order.
var columns = []string{
	"id",
	"run_id",
	"query",
	"page",
	"found_at",
	"title",
	"link",
	"snippet",
}

// New opens (or creates) a CSV file and writes the header row if it is empty.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("csvbackend: open %s: %w", filePath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("csvbackend: stat %s: %w", filePath, err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(columns); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: write header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("csvbackend: write header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, rec *storage.Record) error {
	row := []string{
		rec.ID,
		rec.RunID,
		rec.Query,
		strconv.Itoa(rec.Page),
		rec.FoundAt.Format(time.RFC3339Nano),
		rec.Title,
		rec.Link,
		rec.Snippet,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("csvbackend: seek: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(row); err != nil {
		return fmt.Errorf("csvbackend: write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvbackend: flush: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("csvbackend: seek: %w", err)
	}
	defer func() {
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)
	r.FieldsPerRecord = -1

	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return []*storage.Record{}, nil
		}
		return nil, fmt.Errorf("csvbackend: read header: %w", err)
	}

	var matched []*storage.Record
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csvbackend: read row: %w", err)
		}
		if len(row) != len(columns) {
			continue // malformed
		}

		page, _ := strconv.Atoi(row[3])
		foundAt, _ := time.Parse(time.RFC3339Nano, row[4])
		rec := &storage.Record{
			ID:      row[0],
			RunID:   row[1],
			Query:   row[2],
			Page:    page,
			FoundAt: foundAt,
			Candidate: storage.Candidate{
				Title:   row[5],
				Link:    row[6],
				Snippet: row[7],
			},
		}

		if filter.RunID != "" && rec.RunID != filter.RunID {
			continue
		}
		if filter.Link != "" && rec.Link != filter.Link {
			continue
		}
		if filter.Since != nil && rec.FoundAt.Before(*filter.Since) {
			continue
		}
		matched = append(matched, rec)
	}

	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}

	return storage.Paginate(matched, filter), nil
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
