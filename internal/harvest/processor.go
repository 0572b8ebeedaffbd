package harvest

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"canvascli/internal/canvas"
)

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 3

// CourseHarvester produces the export rows for one course.
type CourseHarvester interface {
	Harvest(ctx context.Context, course canvas.Course) (rows []ExportRow, skipped int, err error)
}

// Exporter writes one course's rows to its output file and returns the
// written path.
type Exporter interface {
	Export(course canvas.Course, rows []ExportRow) (path string, err error)
}

// HarvesterFactory builds a fresh harvester for one course task. Each
// task gets its own harvester (and with it, its own API client and
// pacing state), keeping rate limiting local to the worker.
type HarvesterFactory func() CourseHarvester

// Processor fans courses out across a bounded worker pool, one course
// per task. Failures are contained at the course boundary: a failed
// course is recorded and never aborts its siblings.
type Processor struct {
	newHarvester HarvesterFactory
	exporter     Exporter
	workers      int
	logger       *slog.Logger
}

// NewProcessor creates a course processor with the given pool size.
func NewProcessor(newHarvester HarvesterFactory, exporter Exporter, workers int, logger *slog.Logger) *Processor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		newHarvester: newHarvester,
		exporter:     exporter,
		workers:      workers,
		logger:       logger,
	}
}

// Process harvests and exports every course and returns one terminal
// result per course, indexed in input order. It returns only after each
// course reached SUCCEEDED or FAILED; completion order across courses is
// nondeterministic.
func (p *Processor) Process(ctx context.Context, courses []canvas.Course) []CourseResult {
	results := make([]CourseResult, len(courses))

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, course := range courses {
		i, course := i, course
		g.Go(func() error {
			results[i] = p.processCourse(ctx, course)
			return nil
		})
	}

	// Workers never return errors; failures live in the results.
	_ = g.Wait()
	return results
}

func (p *Processor) processCourse(ctx context.Context, course canvas.Course) CourseResult {
	result := CourseResult{Course: course, State: StateRunning}

	p.logger.Info("course processing started",
		slog.Int64("course_id", course.ID),
		slog.String("course_name", course.Name))

	rows, skipped, err := p.newHarvester().Harvest(ctx, course)
	result.StudentsSkipped = skipped
	if err != nil {
		result.State = StateFailed
		result.Err = err
		p.logger.Error("course processing failed",
			slog.Int64("course_id", course.ID),
			slog.String("course_name", course.Name),
			slog.String("error", err.Error()))
		return result
	}

	path, err := p.exporter.Export(course, rows)
	if err != nil {
		result.State = StateFailed
		result.Err = err
		p.logger.Error("course export failed",
			slog.Int64("course_id", course.ID),
			slog.String("course_name", course.Name),
			slog.String("error", err.Error()))
		return result
	}

	result.State = StateSucceeded
	result.OutputPath = path
	result.Rows = len(rows)
	p.logger.Info("course processing completed",
		slog.Int64("course_id", course.ID),
		slog.String("course_name", course.Name),
		slog.String("output", path),
		slog.Int("rows", len(rows)),
		slog.Int("students_skipped", skipped))
	return result
}
