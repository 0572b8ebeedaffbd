package rollup

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "canvascli/internal/errors"
	"canvascli/internal/exporter"
	"canvascli/internal/files"
	"canvascli/internal/harvest"
)

// Rollup re-aggregates exported activity CSVs into daily totals. Bucket
// timestamps are converted to the configured location, truncated to
// calendar dates, and page views are summed per (student, date).
//
// Running rollup over its own output is a no-op: already-daily rows
// group onto themselves and the sums are identity.
type Rollup struct {
	logger    *slog.Logger
	location  *time.Location
	csvWriter *exporter.CSVWriter
}

// FileSummary describes one successfully rolled-up input file.
type FileSummary struct {
	Name       string // input file name
	OutputPath string
	Rows       []harvest.ExportRow // rolled-up daily rows, sorted
}

// New creates a rollup step. A nil location means UTC.
func New(location *time.Location, logger *slog.Logger) *Rollup {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rollup{
		logger:    logger,
		location:  location,
		csvWriter: exporter.NewCSVWriter(),
	}
}

// Run rolls up every CSV file in inputDir into a same-named file in
// outputDir. A malformed file is logged and skipped; the remaining files
// still process. The returned error is non-nil when any file failed.
func (r *Rollup) Run(inputDir, outputDir string) ([]FileSummary, error) {
	inputs, err := files.FindCSVFiles(inputDir)
	if err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		r.logger.Info("no CSV files found", slog.String("input_dir", inputDir))
		return nil, nil
	}

	if err := files.EnsureDir(outputDir); err != nil {
		return nil, err
	}

	var (
		summaries []FileSummary
		failures  []error
	)
	for _, input := range inputs {
		summary, err := r.rollupFile(input, outputDir)
		if err != nil {
			rollErr := &apperrors.RollupError{File: input.Name, Err: err}
			failures = append(failures, rollErr)
			r.logger.Error("file rollup failed",
				slog.String("file", input.Name),
				slog.String("error", rollErr.Error()))
			continue
		}
		summaries = append(summaries, summary)
		r.logger.Info("file rolled up",
			slog.String("file", input.Name),
			slog.String("output", summary.OutputPath),
			slog.Int("rows", len(summary.Rows)))
	}

	return summaries, errors.Join(failures...)
}

func (r *Rollup) rollupFile(input files.FileInfo, outputDir string) (FileSummary, error) {
	rows, err := readRows(input.Path)
	if err != nil {
		return FileSummary{}, err
	}

	daily, err := r.aggregate(rows)
	if err != nil {
		return FileSummary{}, err
	}

	outputPath := filepath.Join(outputDir, input.Name)
	records := make([][]string, 0, len(daily))
	for _, row := range daily {
		records = append(records, row.Record())
	}
	if err := r.csvWriter.WriteSimpleCSV(outputPath, harvest.ExportHeader, records); err != nil {
		return FileSummary{}, err
	}

	return FileSummary{Name: input.Name, OutputPath: outputPath, Rows: daily}, nil
}

// aggregate groups rows by (student_id, calendar date) summing page
// views, and sorts the result by student id then date. Ties are
// impossible after grouping.
func (r *Rollup) aggregate(rows []harvest.ExportRow) ([]harvest.ExportRow, error) {
	type key struct {
		studentID int64
		date      string
	}

	totals := make(map[key]harvest.ExportRow)
	for _, row := range rows {
		date, err := r.bucketDate(row.Date)
		if err != nil {
			return nil, err
		}

		k := key{studentID: row.StudentID, date: date}
		total, ok := totals[k]
		if !ok {
			total = harvest.ExportRow{
				StudentID:   row.StudentID,
				StudentName: row.StudentName,
				Date:        date,
			}
		}
		total.PageViews += row.PageViews
		totals[k] = total
	}

	daily := make([]harvest.ExportRow, 0, len(totals))
	for _, row := range totals {
		daily = append(daily, row)
	}
	sort.Slice(daily, func(i, j int) bool {
		if daily[i].StudentID != daily[j].StudentID {
			return daily[i].StudentID < daily[j].StudentID
		}
		return daily[i].Date < daily[j].Date
	})
	return daily, nil
}

const dateLayout = "2006-01-02"

// bucketTimeLayouts are the timestamp forms the analytics API has been
// seen to produce, from hourly zoned buckets down to bare dates.
var bucketTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	dateLayout,
}

// bucketDate truncates a bucket timestamp to its calendar date in the
// rollup's location. Timestamps without a zone are taken as UTC. A bare
// date is already a calendar date and passes through unchanged; shifting
// it by zone would move day-granularity rows off their day and break the
// rollup-of-own-output fixed point.
func (r *Rollup) bucketDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range bucketTimeLayouts {
		t, err := time.Parse(layout, value)
		if err != nil {
			continue
		}
		if layout == dateLayout {
			return t.Format(dateLayout), nil
		}
		if layout != time.RFC3339 {
			// No zone in the input; interpret as UTC.
			t = t.UTC()
		}
		return t.In(r.location).Format(dateLayout), nil
	}
	return "", fmt.Errorf("unparseable timestamp %q", value)
}

// readRows reads an exported CSV file, validating the schema. A
// header-only file yields zero rows.
func readRows(path string) ([]harvest.ExportRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(harvest.ExportHeader)

	header, err := reader.Read()
	if err == io.EOF {
		// Completely empty files are tolerated and produce an empty
		// (header-only) output.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, column := range harvest.ExportHeader {
		if strings.TrimSpace(header[i]) != column {
			return nil, fmt.Errorf("unexpected header %v, want %v", header, harvest.ExportHeader)
		}
	}

	var rows []harvest.ExportRow
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		studentID, err := strconv.ParseInt(strings.TrimSpace(record[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: student_id: %w", line, err)
		}
		views, err := parseCount(record[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: page_views: %w", line, err)
		}

		rows = append(rows, harvest.ExportRow{
			StudentID:   studentID,
			StudentName: record[1],
			Date:        record[2],
			PageViews:   views,
		})
	}
	return rows, nil
}

// parseCount reads a page view count, coercing to a non-negative
// integer. Fractional counts are rounded down.
func parseCount(value string) (int64, error) {
	value = strings.TrimSpace(value)
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil {
			return 0, err
		}
		n = int64(f)
	}
	if n < 0 {
		n = 0
	}
	return n, nil
}
