// Package config assembles the run configuration from defaults, an optional
// config file, IGMENTION_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/igmention/internal/extract"
	"github.com/FranksOps/igmention/internal/fingerprint"
	"github.com/FranksOps/igmention/internal/filter"
	"github.com/FranksOps/igmention/internal/serp"
	"github.com/FranksOps/igmention/pkg/useragent"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. IGMENTION_USERNAME or
// IGMENTION_DELAYS_PAGE_MIN.
const EnvPrefix = "IGMENTION"

// PlaceholderUsername is the value shipped in sample configs; running with it
// is a mistake.
const PlaceholderUsername = "replace_with_target_instagram_username"

// ErrMissingUsername is returned by Validate when no real username is set.
var ErrMissingUsername = errors.New("config: username is required")

// StorageDrivers lists the accepted storage.driver values.
var StorageDrivers = []string{"none", "ndjson", "csv", "sqlite", "postgres"}

// Config is the complete run configuration. Build it with Load and treat it
// as read-only afterwards.
type Config struct {
	Username string `mapstructure:"username"`
	// Queries are templates; {username} is replaced with Username.
	Queries  []string `mapstructure:"queries"`
	Pages    int      `mapstructure:"pages"`
	Output   string   `mapstructure:"output"`
	DebugDir string   `mapstructure:"debug_dir"`

	SnippetCap   int               `mapstructure:"snippet_cap"`
	PostPrefixes []string          `mapstructure:"post_prefixes"`
	Selectors    extract.Selectors `mapstructure:"selectors"`

	Search  SearchConfig  `mapstructure:"search"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Delays  DelayConfig   `mapstructure:"delays"`
	Storage StorageConfig `mapstructure:"storage"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Report  ReportConfig  `mapstructure:"report"`
}

type SearchConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	Locale      string `mapstructure:"locale"`
	PageSize    int    `mapstructure:"page_size"`
	KeepSimilar bool   `mapstructure:"keep_similar"`
}

type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxRetries   int           `mapstructure:"max_retries"`
	BackoffBase  time.Duration `mapstructure:"backoff_base"`
	BackoffMax   time.Duration `mapstructure:"backoff_max"`
	MaxRedirects int           `mapstructure:"max_redirects"`
	CookieJar    bool          `mapstructure:"cookie_jar"`
	Fingerprint  string        `mapstructure:"fingerprint"`
	UserAgents   []string      `mapstructure:"user_agents"`
	Proxies      []string      `mapstructure:"proxies"`
	ProxyFile    string        `mapstructure:"proxy_file"`
}

// DelayConfig bounds the random pauses between pages and between queries.
type DelayConfig struct {
	PageMin  time.Duration `mapstructure:"page_min"`
	PageMax  time.Duration `mapstructure:"page_max"`
	QueryMin time.Duration `mapstructure:"query_min"`
	QueryMax time.Duration `mapstructure:"query_max"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type LogConfig struct {
	File  string `mapstructure:"file"`
	Level string `mapstructure:"level"`
}

// MetricsConfig enables the Prometheus endpoint when Port is positive.
type MetricsConfig struct {
	Port int `mapstructure:"port"`
}

type ReportConfig struct {
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when nothing is overridden.
// Username is left empty on purpose.
func Default() Config {
	return Config{
		Queries:      append([]string(nil), serp.DefaultTemplates...),
		Pages:        2,
		DebugDir:     ".",
		SnippetCap:   extract.DefaultSnippetCap,
		PostPrefixes: append([]string(nil), filter.DefaultPostPrefixes...),
		Selectors:    extract.DefaultSelectors(),
		Search: SearchConfig{
			Endpoint: serp.DefaultGoogleEndpoint,
			Locale:   "en",
			PageSize: serp.DefaultPageSize,
		},
		HTTP: HTTPConfig{
			Timeout:      20 * time.Second,
			MaxRetries:   3,
			BackoffBase:  time.Second,
			BackoffMax:   30 * time.Second,
			MaxRedirects: 5,
			CookieJar:    true,
			Fingerprint:  string(fingerprint.ProfileChrome),
			UserAgents:   append([]string(nil), useragent.DefaultPool...),
		},
		Delays: DelayConfig{
			PageMin:  8 * time.Second,
			PageMax:  20 * time.Second,
			QueryMin: 20 * time.Second,
			QueryMax: 40 * time.Second,
		},
		Storage: StorageConfig{Driver: "none"},
		Log:     LogConfig{File: "scraper.log", Level: "info"},
		Report:  ReportConfig{Format: "text"},
	}
}

// SetDefaults registers every key of Default with v so environment
// variables and flags can override them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("username", d.Username)
	v.SetDefault("queries", d.Queries)
	v.SetDefault("pages", d.Pages)
	v.SetDefault("output", d.Output)
	v.SetDefault("debug_dir", d.DebugDir)
	v.SetDefault("snippet_cap", d.SnippetCap)
	v.SetDefault("post_prefixes", d.PostPrefixes)
	v.SetDefault("selectors.blocks", d.Selectors.Blocks)
	v.SetDefault("selectors.titles", d.Selectors.Titles)
	v.SetDefault("selectors.snippets", d.Selectors.Snippets)

	v.SetDefault("search.endpoint", d.Search.Endpoint)
	v.SetDefault("search.locale", d.Search.Locale)
	v.SetDefault("search.page_size", d.Search.PageSize)
	v.SetDefault("search.keep_similar", d.Search.KeepSimilar)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.max_retries", d.HTTP.MaxRetries)
	v.SetDefault("http.backoff_base", d.HTTP.BackoffBase)
	v.SetDefault("http.backoff_max", d.HTTP.BackoffMax)
	v.SetDefault("http.max_redirects", d.HTTP.MaxRedirects)
	v.SetDefault("http.cookie_jar", d.HTTP.CookieJar)
	v.SetDefault("http.fingerprint", d.HTTP.Fingerprint)
	v.SetDefault("http.user_agents", d.HTTP.UserAgents)
	v.SetDefault("http.proxies", d.HTTP.Proxies)
	v.SetDefault("http.proxy_file", d.HTTP.ProxyFile)

	v.SetDefault("delays.page_min", d.Delays.PageMin)
	v.SetDefault("delays.page_max", d.Delays.PageMax)
	v.SetDefault("delays.query_min", d.Delays.QueryMin)
	v.SetDefault("delays.query_max", d.Delays.QueryMax)

	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.dsn", d.Storage.DSN)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("metrics.port", d.Metrics.Port)
	v.SetDefault("report.format", d.Report.Format)
}

// Load reads configuration through v. configFile may be empty. Flags must be
// bound to v by the caller before Load.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	c.Username = strings.TrimSpace(c.Username)
	if c.Output == "" && c.Username != "" {
		c.Output = c.Username + "_instagram_results.json"
	}
	return c, nil
}

// Validate checks the settings a run cannot start without. It wraps
// ErrMissingUsername when the username is empty or still the placeholder.
func (c Config) Validate() error {
	var errs []error

	switch strings.TrimSpace(c.Username) {
	case "":
		errs = append(errs, ErrMissingUsername)
	case PlaceholderUsername:
		errs = append(errs, fmt.Errorf("%w: replace %q with a real username", ErrMissingUsername, PlaceholderUsername))
	}

	if len(c.Queries) == 0 {
		errs = append(errs, errors.New("config: at least one query template is required"))
	}
	if c.Pages < 1 {
		errs = append(errs, fmt.Errorf("config: pages must be at least 1, got %d", c.Pages))
	}
	if c.Delays.PageMin < 0 || c.Delays.PageMin > c.Delays.PageMax {
		errs = append(errs, fmt.Errorf("config: page delay bounds invalid: min %s, max %s", c.Delays.PageMin, c.Delays.PageMax))
	}
	if c.Delays.QueryMin < 0 || c.Delays.QueryMin > c.Delays.QueryMax {
		errs = append(errs, fmt.Errorf("config: query delay bounds invalid: min %s, max %s", c.Delays.QueryMin, c.Delays.QueryMax))
	}
	if c.HTTP.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("config: max retries cannot be negative, got %d", c.HTTP.MaxRetries))
	}
	if _, err := fingerprint.ParseProfile(c.HTTP.Fingerprint); err != nil {
		errs = append(errs, fmt.Errorf("config: %w", err))
	}
	if !validDriver(c.Storage.Driver) {
		errs = append(errs, fmt.Errorf("config: unknown storage driver %q (want one of %s)", c.Storage.Driver, strings.Join(StorageDrivers, ", ")))
	} else if c.Storage.Driver != "none" && c.Storage.DSN == "" {
		errs = append(errs, fmt.Errorf("config: storage driver %q needs a dsn", c.Storage.Driver))
	}

	switch c.Report.Format {
	case "", "text", "json", "html":
	default:
		errs = append(errs, fmt.Errorf("config: unknown report format %q", c.Report.Format))
	}

	return errors.Join(errs...)
}

func validDriver(d string) bool {
	if d == "" {
		return true
	}
	for _, s := range StorageDrivers {
		if d == s {
			return true
		}
	}
	return false
}
