package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/FranksOps/igmention/internal/artifact"
	"github.com/FranksOps/igmention/internal/config"
	"github.com/FranksOps/igmention/internal/extract"
	"github.com/FranksOps/igmention/internal/filter"
	"github.com/FranksOps/igmention/internal/fingerprint"
	"github.com/FranksOps/igmention/internal/logging"
	"github.com/FranksOps/igmention/internal/metrics"
	"github.com/FranksOps/igmention/internal/pipeline"
	"github.com/FranksOps/igmention/internal/report"
	"github.com/FranksOps/igmention/internal/scraper"
	"github.com/FranksOps/igmention/internal/serp"
	"github.com/FranksOps/igmention/internal/storage"
	"github.com/FranksOps/igmention/internal/storage/csvbackend"
	"github.com/FranksOps/igmention/internal/storage/jsonbackend"
	"github.com/FranksOps/igmention/internal/storage/postgres"
	"github.com/FranksOps/igmention/internal/storage/sqlite"
	"github.com/FranksOps/igmention/pkg/httpclient"
	"github.com/FranksOps/igmention/pkg/proxy"
	"github.com/FranksOps/igmention/pkg/ratelimit"
	"github.com/FranksOps/igmention/pkg/useragent"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search [username]",
	Short: "Search for Instagram posts mentioning a username",
	Long: `Run every query template for the username, page through the results and
write the matching Instagram post links to a JSON file.

Requests are spaced out with random pauses between pages and between
queries. A page that looks like a CAPTCHA or rate limit ends its query and
is saved as debug_block_*.html; a page with no recognizable results is saved
as debug_page_*.html.`,
	Example: `  # Search with defaults, results in leanbeefpatty_instagram_results.json
  igmention search leanbeefpatty

  # One page per query through a proxy list, metrics on :9090
  igmention search leanbeefpatty --pages 1 --proxy-file proxies.txt --metrics-port 9090

  # Also keep every hit in sqlite
  igmention search leanbeefpatty --storage-driver sqlite --storage-dsn hits.db`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	f := searchCmd.Flags()
	f.StringP("username", "u", "", "target Instagram username")
	f.IntP("pages", "p", 0, "result pages per query (default 2)")
	f.StringP("output", "o", "", "results file (default <username>_instagram_results.json)")
	f.String("proxy-file", "", "file with one proxy URL per line")
	f.String("fingerprint", "", "TLS fingerprint: "+profileNames()+" (default chrome)")
	f.Int("metrics-port", 0, "serve Prometheus metrics on this port (0 disables)")

	mustBind("username", f.Lookup("username"))
	mustBind("pages", f.Lookup("pages"))
	mustBind("output", f.Lookup("output"))
	mustBind("http.proxy_file", f.Lookup("proxy-file"))
	mustBind("http.fingerprint", f.Lookup("fingerprint"))
	mustBind("metrics.port", f.Lookup("metrics-port"))
}

func profileNames() string {
	names := make([]string, 0, len(fingerprint.Profiles()))
	for _, p := range fingerprint.Profiles() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

func runSearch(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		v.Set("username", args[0])
	}

	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger, logCloser, err := logging.New(logging.Options{File: cfg.Log.File, Level: level})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	printBanner(out, cfg.Username)

	queries, err := serp.BuildQueries(cfg.Username, cfg.Queries)
	if err != nil {
		return err
	}

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer fetcher.Close()

	sink, err := openSink(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
	}

	if cfg.Metrics.Port > 0 {
		srv, err := metrics.Start(cfg.Metrics.Port, logger)
		if err != nil {
			return err
		}
		defer srv.Stop(context.Background())
		logger.Info("serving metrics", "addr", srv.Addr())
	}

	p, err := pipeline.New(pipeline.Config{
		Username:      cfg.Username,
		Queries:       queries,
		PagesPerQuery: cfg.Pages,
		Output:        cfg.Output,
		Fetcher:       fetcher,
		Extractor:     extract.New(cfg.Selectors, cfg.SnippetCap),
		Matcher:       filter.NewMatcher(cfg.Username, cfg.PostPrefixes),
		PagePause:     ratelimit.NewPause(cfg.Delays.PageMin, cfg.Delays.PageMax),
		QueryPause:    ratelimit.NewPause(cfg.Delays.QueryMin, cfg.Delays.QueryMax),
		Sink:          sink,
		Artifacts:     &artifact.Writer{Dir: cfg.DebugDir},
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	summary, runErr := p.Run(ctx)
	if summary != nil {
		fmt.Fprintln(out)
		if err := report.Write(out, cfg.Report.Format, summary); err != nil {
			logger.Error("failed to write summary", "err", err)
		}
	}
	printNotes(out)

	if runErr != nil {
		return fmt.Errorf("search stopped early: %w", runErr)
	}
	return nil
}

func newFetcher(cfg config.Config) (*scraper.Fetcher, error) {
	profile, err := fingerprint.ParseProfile(cfg.HTTP.Fingerprint)
	if err != nil {
		return nil, err
	}

	var proxies *proxy.Pool
	if cfg.HTTP.ProxyFile != "" || len(cfg.HTTP.Proxies) > 0 {
		proxies = proxy.NewPool(proxy.Config{})
		if cfg.HTTP.ProxyFile != "" {
			if err := proxies.LoadFile(cfg.HTTP.ProxyFile); err != nil {
				return nil, err
			}
		}
		if err := proxies.Add(cfg.HTTP.Proxies...); err != nil {
			return nil, err
		}
	}

	engine := serp.NewGoogle(cfg.Search.Endpoint, cfg.Search.Locale, cfg.Search.PageSize)
	engine.KeepSimilar = cfg.Search.KeepSimilar

	return scraper.NewFetcher(scraper.FetchConfig{
		Engine:       engine,
		Timeout:      cfg.HTTP.Timeout,
		MaxRedirects: cfg.HTTP.MaxRedirects,
		UseCookieJar: cfg.HTTP.CookieJar,
		ProxyPool:    proxies,
		UAPool:       useragent.NewPool(cfg.HTTP.UserAgents),
		Fingerprint:  profile,
		Retry: httpclient.RetryPolicy{
			MaxRetries: cfg.HTTP.MaxRetries,
			BaseDelay:  cfg.HTTP.BackoffBase,
			MaxDelay:   cfg.HTTP.BackoffMax,
			Jitter:     0.2,
		},
	})
}

// openSink returns nil when no driver is configured.
func openSink(ctx context.Context, sc config.StorageConfig) (storage.Backend, error) {
	switch sc.Driver {
	case "", "none":
		return nil, nil
	case "ndjson":
		return jsonbackend.New(sc.DSN)
	case "csv":
		return csvbackend.New(sc.DSN)
	case "sqlite":
		return sqlite.New(sc.DSN)
	case "postgres":
		return postgres.New(ctx, sc.DSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", sc.Driver)
	}
}

func printBanner(w io.Writer, username string) {
	rule := strings.Repeat("-", 60)
	fmt.Fprintf(w, "--- Starting Instagram mention search for: %s ---\n", username)
	fmt.Fprintln(w, "!!! WARNING: web search will NOT find every comment or mention. !!!")
	fmt.Fprintln(w, rule)
}

func printNotes(w io.Writer) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "--- Important Notes ---")
	fmt.Fprintln(w, "1. Results are limited by the search engine's index and will miss most comments.")
	fmt.Fprintln(w, "2. Verify every link by hand before relying on it.")
	fmt.Fprintln(w, "3. Instagram-specific tools give far better coverage than web search.")
	fmt.Fprintln(w, "4. Frequent runs trigger CAPTCHAs and blocks; keep pages and runs few.")
	fmt.Fprintln(w, rule)
}
