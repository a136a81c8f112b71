package pipeline

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/FranksOps/igmention/internal/artifact"
	"github.com/FranksOps/igmention/internal/extract"
	"github.com/FranksOps/igmention/internal/filter"
	"github.com/FranksOps/igmention/internal/metrics"
	"github.com/FranksOps/igmention/internal/report"
	"github.com/FranksOps/igmention/internal/storage"
	"github.com/FranksOps/igmention/internal/storage/jsonbackend"
	"github.com/google/uuid"
)

// Fetcher returns one result page for a query. *scraper.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, query string, page int) (*storage.Page, error)
}

// engineNamer is implemented by fetchers that know which engine they query.
type engineNamer interface {
	EngineName() string
}

// Waiter blocks between requests. *ratelimit.Pause satisfies it.
type Waiter interface {
	Wait(ctx context.Context) (time.Duration, error)
}

// Config wires a Pipeline. Fetcher, Queries and PagesPerQuery are required.
type Config struct {
	Username      string
	Queries       []string
	PagesPerQuery int
	// Output is the results file; empty means <username>_instagram_results.json.
	Output string

	Fetcher    Fetcher
	Extractor  *extract.Extractor
	Matcher    *filter.Matcher
	PagePause  Waiter
	QueryPause Waiter

	// Sink, when set, receives every kept candidate as it is accepted.
	Sink storage.Backend
	// Artifacts, when set, receives blocked pages and pages without results.
	Artifacts *artifact.Writer

	Logger *slog.Logger
	// Persist writes the final results; nil means jsonbackend.WriteResults.
	Persist func(path string, results []storage.Candidate) error
}

// DefaultOutput is the results file name used for username.
func DefaultOutput(username string) string {
	return username + "_instagram_results.json"
}

// Pipeline runs every query page by page, filters what it finds and
// persists the result set once at the end.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and fills defaults.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("pipeline: fetcher is nil")
	}
	if len(cfg.Queries) == 0 {
		return nil, errors.New("pipeline: no queries")
	}
	if cfg.PagesPerQuery < 1 {
		return nil, fmt.Errorf("pipeline: pages per query must be at least 1, got %d", cfg.PagesPerQuery)
	}
	if cfg.Extractor == nil {
		cfg.Extractor = extract.New(extract.Selectors{}, 0)
	}
	if cfg.Matcher == nil {
		cfg.Matcher = filter.NewMatcher(cfg.Username, nil)
	}
	if cfg.Output == "" {
		cfg.Output = DefaultOutput(cfg.Username)
	}
	if cfg.Persist == nil {
		cfg.Persist = jsonbackend.WriteResults
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: logger}, nil
}

// Run processes all queries. A failing page only ends its own query. When
// ctx is cancelled, or a pause fails, the loops stop, what was found so far
// is persisted and the error is returned with the summary.
func (p *Pipeline) Run(ctx context.Context) (*report.Summary, error) {
	runID := uuid.NewString()
	sum := report.New(runID, p.cfg.Username)
	sum.StartTime = time.Now().UTC()
	sum.Output = p.cfg.Output

	logger := p.logger.With("run_id", runID)
	engine := "unknown"
	if n, ok := p.cfg.Fetcher.(engineNamer); ok {
		engine = n.EngineName()
	}
	logger.Info("starting search", "username", p.cfg.Username, "engine", engine, "queries", len(p.cfg.Queries), "pages_per_query", p.cfg.PagesPerQuery)

	var results filter.ResultSet
	var stopErr error

queries:
	for i, query := range p.cfg.Queries {
		if ctx.Err() != nil {
			break
		}
		sum.QueriesRun++
		logger.Info("running query", "query", query, "index", i+1, "total", len(p.cfg.Queries))

		for page := range p.cfg.PagesPerQuery {
			if !p.processPage(ctx, logger, runID, query, page, &results, sum) {
				break
			}
			if page < p.cfg.PagesPerQuery-1 {
				if err := p.wait(ctx, logger, p.cfg.PagePause, "page"); err != nil {
					stopErr = err
					break queries
				}
			}
		}

		if i < len(p.cfg.Queries)-1 {
			if err := p.wait(ctx, logger, p.cfg.QueryPause, "query"); err != nil {
				stopErr = err
				break
			}
		}
	}

	sum.Results = results.Items()
	sum.CandidatesKept = results.Len()
	sum.Duplicates = results.Duplicates()
	sum.EndTime = time.Now().UTC()
	sum.Duration = sum.EndTime.Sub(sum.StartTime)

	if err := p.cfg.Persist(p.cfg.Output, sum.Results); err != nil {
		logger.Error("failed to save results", "path", p.cfg.Output, "err", err)
	} else {
		logger.Info("saved results", "path", p.cfg.Output, "count", sum.CandidatesKept)
	}

	if stopErr == nil {
		stopErr = ctx.Err()
	}
	if stopErr != nil {
		logger.Warn("search interrupted", "err", stopErr)
		return sum, stopErr
	}
	return sum, nil
}

// processPage fetches, extracts and filters one page. It reports whether the
// query should move on to its next page.
func (p *Pipeline) processPage(ctx context.Context, logger *slog.Logger, runID, query string, page int, results *filter.ResultSet, sum *report.Summary) (next bool) {
	logger = logger.With("query", query, "page", page+1)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("unexpected failure processing page, skipping rest of query", "panic", r)
			next = false
		}
	}()

	logger.Info("fetching page")
	pg, err := p.cfg.Fetcher.Fetch(ctx, query, page)
	if err != nil {
		logger.Error("could not request page", "err", err)
		return false
	}
	metrics.RecordPage(pg)
	sum.AddPage(pg)

	if pg.Blocked {
		logger.Warn("search engine blocked the request, skipping rest of query", "reason", pg.BlockReason, "status", pg.StatusCode)
		p.dump(logger, query, page, artifact.KindBlock, pg.Body)
		return false
	}
	if pg.Error != "" {
		if ctx.Err() != nil {
			return false
		}
		logger.Error("fetch failed, skipping rest of query", "err", pg.Error, "status", pg.StatusCode)
		return false
	}

	seq, err := p.cfg.Extractor.Extract(pg.Body)
	if errors.Is(err, extract.ErrNoBlocks) {
		sum.PagesEmpty++
		metrics.PagesEmpty.Inc()
		logger.Warn("no result blocks found, page layout may have changed")
		p.dump(logger, query, page, artifact.KindPage, pg.Body)
		return true
	}
	if err != nil {
		logger.Error("could not parse page, skipping rest of query", "err", err)
		return false
	}

	hits := 0
	for c := range p.cfg.Matcher.Filter(counted(seq, &sum.CandidatesSeen)) {
		if !results.Add(c) {
			metrics.CandidatesDuplicate.Inc()
			continue
		}
		hits++
		metrics.CandidatesKept.Inc()
		logger.Info("potential hit", "title", c.Title, "link", c.Link, "snippet", c.Snippet)
		p.save(ctx, logger, runID, query, page, c)
	}
	if hits == 0 {
		logger.Info("no relevant results on this page")
	}
	return true
}

func (p *Pipeline) save(ctx context.Context, logger *slog.Logger, runID, query string, page int, c storage.Candidate) {
	if p.cfg.Sink == nil {
		return
	}
	rec := &storage.Record{
		ID:        uuid.NewString(),
		RunID:     runID,
		Query:     query,
		Page:      page + 1,
		FoundAt:   time.Now().UTC(),
		Candidate: c,
	}
	if err := p.cfg.Sink.Save(ctx, rec); err != nil {
		logger.Warn("failed to save record to sink", "link", c.Link, "err", err)
	}
}

func (p *Pipeline) dump(logger *slog.Logger, query string, page int, kind artifact.Kind, body []byte) {
	if p.cfg.Artifacts == nil {
		return
	}
	path, err := p.cfg.Artifacts.Dump(query, page, kind, body)
	if err != nil {
		logger.Warn("failed to save debug page", "kind", kind, "err", err)
		return
	}
	logger.Info("saved debug page", "kind", kind, "path", path)
}

func (p *Pipeline) wait(ctx context.Context, logger *slog.Logger, w Waiter, between string) error {
	if w == nil {
		return ctx.Err()
	}
	d, err := w.Wait(ctx)
	if err != nil {
		return err
	}
	logger.Info("paused", "between", between, "duration", d.Round(time.Millisecond))
	return nil
}

// counted passes seq through, adding one to *n per element.
func counted(seq iter.Seq[storage.Candidate], n *int) iter.Seq[storage.Candidate] {
	return func(yield func(storage.Candidate) bool) {
		for c := range seq {
			*n++
			if !yield(c) {
				return
			}
		}
	}
}
