package harvest

import (
	"context"
	"log/slog"

	"canvascli/internal/canvas"
)

// ActivityClient is the slice of the Canvas client the harvester needs.
type ActivityClient interface {
	ListStudents(ctx context.Context, courseID int64) ([]canvas.Student, error)
	GetStudentActivity(ctx context.Context, courseID, studentID int64) (canvas.ActivitySummary, error)
}

// Harvester fetches the enrolled students of one course and each
// student's page-view analytics, normalizing them into export rows.
type Harvester struct {
	client ActivityClient
	logger *slog.Logger
}

// NewHarvester creates a course activity harvester.
func NewHarvester(client ActivityClient, logger *slog.Logger) *Harvester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Harvester{client: client, logger: logger}
}

// Harvest produces the export rows for one course, in enrollment order
// and with each student's buckets sorted by timestamp. A student whose
// analytics fetch fails is logged, counted in skipped, and does not
// abort the course; a failed student listing does. Students with no
// activity yield zero rows.
func (h *Harvester) Harvest(ctx context.Context, course canvas.Course) (rows []ExportRow, skipped int, err error) {
	students, err := h.client.ListStudents(ctx, course.ID)
	if err != nil {
		return nil, 0, err
	}

	h.logger.Info("harvesting course activity",
		slog.Int64("course_id", course.ID),
		slog.String("course_name", course.Name),
		slog.Int("students", len(students)))

	for _, student := range students {
		summary, err := h.client.GetStudentActivity(ctx, course.ID, student.ID)
		if err != nil {
			skipped++
			h.logger.Warn("skipping student after activity fetch failure",
				slog.Int64("course_id", course.ID),
				slog.Int64("student_id", student.ID),
				slog.String("student_name", student.Name),
				slog.String("error", err.Error()))
			continue
		}

		buckets := summary.Buckets()
		if len(buckets) == 0 {
			h.logger.Debug("student has no page view data",
				slog.Int64("course_id", course.ID),
				slog.Int64("student_id", student.ID))
			continue
		}

		for _, bucket := range buckets {
			rows = append(rows, ExportRow{
				StudentID:   student.ID,
				StudentName: student.Name,
				Date:        bucket.Timestamp,
				PageViews:   bucket.PageViews,
			})
		}
	}

	return rows, skipped, nil
}
