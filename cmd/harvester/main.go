// Command harvester exports per-student daily page-view counts from the
// Canvas API to one CSV file per course.
//
// Courses are selected either explicitly (--course-ids) or by listing a
// subaccount and filtering by name (--subaccount, --search). Each course
// is processed by a bounded worker pool; a course failing never aborts
// its siblings. The exit code is non-zero when any course failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"canvascli/internal/canvas"
	"canvascli/internal/config"
	"canvascli/internal/exporter"
	"canvascli/internal/harvest"
	"canvascli/internal/infrastructure"
)

// courseIDsFlag accepts repeated --course-ids flags and comma-separated
// lists, e.g. --course-ids 101,102 --course-ids 103.
type courseIDsFlag []int64

func (f *courseIDsFlag) String() string {
	parts := make([]string, len(*f))
	for i, id := range *f {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func (f *courseIDsFlag) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid course id %q", part)
		}
		*f = append(*f, id)
	}
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	var courseIDs courseIDsFlag
	subaccount := flag.String("subaccount", "self", `Canvas subaccount ID ("self" for the root account)`)
	search := flag.String("search", "", "search term to filter courses by name")
	outputDir := flag.String("output-dir", "output", "directory to save output files")
	threads := flag.Int("threads", harvest.DefaultWorkers, "number of concurrent course workers")
	flag.Var(&courseIDs, "course-ids", "specific course IDs to process, comma-separated or repeated (overrides search)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Set CANVAS_API_KEY and CANVAS_BASE_URL in the environment or config.yaml.")
		return 1
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger, using default: %v\n", err)
		logger = slog.Default()
	}
	defer infrastructure.CloseLogFile()

	runID := uuid.New().String()
	logger = logger.With(slog.String("run_id", runID))

	logger.Info("page view harvester starting",
		slog.String("subaccount", *subaccount),
		slog.String("search", *search),
		slog.String("output_dir", *outputDir),
		slog.Int("threads", *threads),
		slog.String("course_ids", courseIDs.String()))

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		logger.Error("failed to create output directory",
			slog.String("output_dir", *outputDir),
			slog.String("error", err.Error()))
		return 1
	}

	ctx := context.Background()

	resolver := harvest.NewResolver(canvas.NewClient(cfg, logger), logger)
	courses, err := resolver.Resolve(ctx, harvest.ResolveOptions{
		CourseIDs:  courseIDs,
		Subaccount: *subaccount,
		Search:     *search,
	})
	if err != nil {
		logger.Error("course resolution failed", slog.String("error", err.Error()))
		return 1
	}
	if len(courses) == 0 {
		logger.Info("no courses matched the selection criteria")
		return 0
	}

	logger.Info("processing courses", slog.Int("count", len(courses)))

	// Each worker task builds its own client so request pacing stays
	// local to that worker.
	newHarvester := func() harvest.CourseHarvester {
		return harvest.NewHarvester(canvas.NewClient(cfg, logger), logger)
	}
	processor := harvest.NewProcessor(newHarvester, exporter.NewActivityExporter(*outputDir), *threads, logger)
	results := processor.Process(ctx, courses)

	return summarize(logger, results)
}

// summarize logs the final per-course outcome and returns the process
// exit code: 0 on full success, 1 when any course failed.
func summarize(logger *slog.Logger, results []harvest.CourseResult) int {
	sorted := make([]harvest.CourseResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Course.ID < sorted[j].Course.ID
	})

	failed := 0
	for _, result := range sorted {
		if result.State == harvest.StateSucceeded {
			logger.Info("course succeeded",
				slog.Int64("course_id", result.Course.ID),
				slog.String("course_name", result.Course.Name),
				slog.String("output", result.OutputPath),
				slog.Int("rows", result.Rows),
				slog.Int("students_skipped", result.StudentsSkipped))
			continue
		}
		failed++
		logger.Error("course failed",
			slog.Int64("course_id", result.Course.ID),
			slog.String("course_name", result.Course.Name),
			slog.String("error", result.Err.Error()))
	}

	logger.Info("run complete",
		slog.Int("courses", len(results)),
		slog.Int("succeeded", len(results)-failed),
		slog.Int("failed", failed))

	if failed > 0 {
		return 1
	}
	return 0
}
