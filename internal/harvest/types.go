package harvest

import (
	"strconv"

	"canvascli/internal/canvas"
)

// ExportHeader is the exact column order of every exported CSV file.
// The rollup step preserves the same schema.
var ExportHeader = []string{"student_id", "student_name", "date", "page_views"}

// ExportRow is one time bucket of one student's page views, ready for
// CSV export. Date carries the bucket key as the API reported it, which
// may be an hourly RFC3339 timestamp or a bare YYYY-MM-DD date.
type ExportRow struct {
	StudentID   int64
	StudentName string
	Date        string
	PageViews   int64
}

// Record returns the row in ExportHeader column order.
func (r ExportRow) Record() []string {
	return []string{
		strconv.FormatInt(r.StudentID, 10),
		r.StudentName,
		r.Date,
		strconv.FormatInt(r.PageViews, 10),
	}
}

// State is the processing state of one course.
type State int

const (
	StatePending State = iota
	StateRunning
	StateSucceeded
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CourseResult is the terminal outcome of processing one course: either
// a written CSV path or a recorded failure with its cause. A result is
// owned by the worker that produced it until the processor hands the
// full set back to the caller.
type CourseResult struct {
	Course          canvas.Course
	State           State
	OutputPath      string
	Rows            int
	StudentsSkipped int
	Err             error
}
