// Command rollup re-aggregates exported activity CSVs into daily
// per-student totals.
//
// Usage:
//
//	rollup [flags] INPUT_DIR
//
// Each CSV in INPUT_DIR is grouped by (student_id, calendar date) with
// page views summed, and written under the same name to --output_dir.
// Timestamps are converted to the --tz location before truncation. The
// step is idempotent: running it over its own output changes nothing.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"canvascli/internal/config"
	"canvascli/internal/infrastructure"
	"canvascli/internal/rollup"
)

func main() {
	os.Exit(run())
}

func run() int {
	outputDir := flag.String("output_dir", "processed_output", "directory for output CSV files")
	tz := flag.String("tz", "UTC", "IANA time zone for bucketing timestamps into days")
	summaryXLSX := flag.String("summary-xlsx", "", "optional path for an Excel summary workbook")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] INPUT_DIR\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 1
	}
	inputDir := flag.Arg(0)

	logCfg, err := config.LoadLogging()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	logger, err := infrastructure.InitializeLogger(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger, using default: %v\n", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	location, err := time.LoadLocation(*tz)
	if err != nil {
		logger.Error("invalid time zone", slog.String("tz", *tz), slog.String("error", err.Error()))
		return 1
	}

	logger.Info("daily rollup starting",
		slog.String("input_dir", inputDir),
		slog.String("output_dir", *outputDir),
		slog.String("tz", *tz))

	summaries, runErr := rollup.New(location, logger).Run(inputDir, *outputDir)

	if *summaryXLSX != "" && len(summaries) > 0 {
		if err := rollup.WriteSummaryWorkbook(*summaryXLSX, summaries); err != nil {
			logger.Error("summary workbook failed",
				slog.String("path", *summaryXLSX),
				slog.String("error", err.Error()))
			return 1
		}
		logger.Info("summary workbook written", slog.String("path", *summaryXLSX))
	}

	logger.Info("rollup complete", slog.Int("files", len(summaries)))

	if runErr != nil {
		return 1
	}
	return 0
}
