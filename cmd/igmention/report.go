package main

import (
	"errors"
	"fmt"

	"github.com/FranksOps/igmention/internal/config"
	"github.com/FranksOps/igmention/internal/report"
	"github.com/FranksOps/igmention/internal/storage"
	"github.com/FranksOps/igmention/internal/storage/jsonbackend"
	"github.com/spf13/cobra"
)

var (
	reportRunID string
	reportLimit int
)

var reportCmd = &cobra.Command{
	Use:   "report [results.json]",
	Short: "Summarize a results file or the records kept in a storage sink",
	Long: `Print the candidates of a results file written by 'igmention search'.

Without a file argument the records are read from the configured storage
sink instead (--storage-driver and --storage-dsn), newest first.`,
	Example: `  igmention report leanbeefpatty_instagram_results.json
  igmention report leanbeefpatty_instagram_results.json --report-format html > report.html
  igmention report --storage-driver sqlite --storage-dsn hits.db --run-id 1b4e...`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportRunID, "run-id", "", "only records from this run (sink mode)")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 0, "maximum number of records (sink mode, 0 for all)")
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}

	var summary *report.Summary
	if len(args) == 1 {
		results, err := jsonbackend.ReadResults(args[0])
		if err != nil {
			return err
		}
		summary = report.FromResults(args[0], results)
	} else {
		if cfg.Storage.Driver == "" || cfg.Storage.Driver == "none" {
			return errors.New("report: give a results file or configure a storage driver")
		}
		sink, err := openSink(cmd.Context(), cfg.Storage)
		if err != nil {
			return err
		}
		defer sink.Close()

		records, err := sink.Query(cmd.Context(), storage.Filter{RunID: reportRunID, Limit: reportLimit})
		if err != nil {
			return err
		}
		results := make([]storage.Candidate, 0, len(records))
		for _, r := range records {
			results = append(results, r.Candidate)
		}
		summary = report.FromResults(fmt.Sprintf("%s:%s", cfg.Storage.Driver, cfg.Storage.DSN), results)
		summary.RunID = reportRunID
	}

	return report.Write(cmd.OutOrStdout(), cfg.Report.Format, summary)
}
