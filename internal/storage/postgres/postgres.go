package postgres

import (
	"context"
	"fmt"

	"github.com/FranksOps/igmention/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ensure postgresBackend implements storage.Backend
var _ storage.Backend = (*postgresBackend)(nil)

type postgresBackend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS candidates (
	id TEXT PRIMARY KEY,
	run_id TEXT NOT NULL,
	query TEXT NOT NULL,
	page INTEGER NOT NULL,
	found_at TIMESTAMPTZ NOT NULL,
	title TEXT NOT NULL,
	link TEXT NOT NULL,
	snippet TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS candidates_link_idx ON candidates (link);
CREATE INDEX IF NOT EXISTS candidates_run_idx ON candidates (run_id);
`

// New connects to Postgres at dsn and ensures the schema exists.
func New(ctx context.Context, dsn string) (storage.Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create schema: %w", err)
	}

	return &postgresBackend{pool: pool}, nil
}

func (b *postgresBackend) Save(ctx context.Context, rec *storage.Record) error {
	query := `
	INSERT INTO candidates (
		id, run_id, query, page, found_at, title, link, snippet
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := b.pool.Exec(ctx, query,
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
		return fmt.Errorf("postgres: insert %s: %w", rec.Link, err)
	}
	return nil
}

func (b *postgresBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Record, error) {
	query := `SELECT id, run_id, query, page, found_at, title, link, snippet FROM candidates WHERE 1=1`
	args := pgx.NamedArgs{}

	if filter.RunID != "" {
		query += ` AND run_id = @run_id`
		args["run_id"] = filter.RunID
	}
	if filter.Link != "" {
		query += ` AND link = @link`
		args["link"] = filter.Link
	}
	if filter.Since != nil {
		query += ` AND found_at >= @since`
		args["since"] = *filter.Since
	}

	query += ` ORDER BY found_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT @limit`
		args["limit"] = filter.Limit
	}
	if filter.Offset > 0 {
		query += ` OFFSET @offset`
		args["offset"] = filter.Offset
	}

	rows, err := b.pool.Query(ctx, query, args)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*storage.Record, error) {
		var r storage.Record
		err := row.Scan(&r.ID, &r.RunID, &r.Query, &r.Page, &r.FoundAt, &r.Title, &r.Link, &r.Snippet)
		return &r, err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan: %w", err)
	}
	return results, nil
}

func (b *postgresBackend) Close() error {
	b.pool.Close()
	return nil
}
