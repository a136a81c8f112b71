package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FranksOps/igmention/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	query TEXT NOT NULL,
	page INTEGER NOT NULL,
	found_at DATETIME NOT NULL,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	snippet TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS candidates_link_idx ON candidates (link);
CREATE INDEX IF NOT EXISTS candidates_run_idx ON candidates (run_id);
`

// New opens a SQLite database at dsn and ensures the schema exists.
func New(dsn string) (storage.Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Save(ctx context.Context, rec *storage.Record) error {
	query := `
	INSERT INTO candidates (
		id, run_id, query, page, found_at, title, link, snippet
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := b.db.ExecContext(ctx, query,
		rec.ID,
		rec.RunID,
		rec.Query,
		rec.Page,
		rec.FoundAt,
		rec.Title,
		rec.Link,
		rec.Snippet,
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert %s: %w", rec.Link, err)
	}
	return nil
}

func (b *sqliteBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT id, run_id, query, page, found_at, title, link, snippet FROM candidates WHERE 1=1`
	args := []any{}

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.Link != "" {
		query += ` AND link = ?`
		args = append(args, filter.Link)
	}
	if filter.Since != nil {
		query += ` AND found_at >= ?`
		args = append(args, *filter.Since)
	}

	query += ` ORDER BY found_at DESC`

	// sqlite only accepts OFFSET after a LIMIT; -1 means no limit
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()

	var results []*storage.Record
	for rows.Next() {
		var r storage.Record
		if err := rows.Scan(&r.ID, &r.RunID, &r.Query, &r.Page, &r.FoundAt, &r.Title, &r.Link, &r.Snippet); err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}
		results = append(results, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}

	return results, nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
