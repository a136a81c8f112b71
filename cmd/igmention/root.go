package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version information, set with -ldflags at build time.
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	configFile string

	// v collects flag bindings for every command; config.Load reads through it.
	v = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   "igmention",
	Short: "Find Instagram posts that mention a username through web search",
	Long: `igmention runs a handful of search-engine queries for an Instagram username,
parses the result pages and keeps links to Instagram posts whose title or
snippet mentions the user.

Configuration is merged from, lowest to highest priority:
  - built-in defaults
  - a config file (--config, YAML, TOML or JSON)
  - IGMENTION_* environment variables (e.g. IGMENTION_DELAYS_PAGE_MIN=10s)
  - command line flags`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "config file (YAML, TOML or JSON)")
	pf.String("log-file", "", "log file (default scraper.log)")
	pf.String("log-level", "", "log level for the log file: debug, info, warn, error (default info)")
	pf.String("report-format", "", "summary format: text, json, html (default text)")
	pf.String("storage-driver", "", "record sink: none, ndjson, csv, sqlite, postgres (default none)")
	pf.String("storage-dsn", "", "sink file path or postgres connection string")

	mustBind("log.file", pf.Lookup("log-file"))
	mustBind("log.level", pf.Lookup("log-level"))
	mustBind("report.format", pf.Lookup("report-format"))
	mustBind("storage.driver", pf.Lookup("storage-driver"))
	mustBind("storage.dsn", pf.Lookup("storage-dsn"))

	rootCmd.SetVersionTemplate(`igmention {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "igmention %s\n", rootCmd.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "Go Version: %s\nOS/Arch: %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
