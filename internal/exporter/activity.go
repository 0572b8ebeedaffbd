package exporter

import (
	"fmt"
	"path/filepath"
	"unicode"

	"canvascli/internal/canvas"
	"canvascli/internal/harvest"
)

// ActivityExporter writes one course's harvested rows to a per-course
// CSV file named {course_id}_{course_name}_activity.csv.
type ActivityExporter struct {
	csvWriter *CSVWriter
	outputDir string
}

// NewActivityExporter creates an exporter writing into outputDir.
func NewActivityExporter(outputDir string) *ActivityExporter {
	return &ActivityExporter{
		csvWriter: NewCSVWriter(),
		outputDir: outputDir,
	}
}

// Export writes the course's rows, in the order given, under the export
// header. A course with no rows still gets a header-only file.
func (e *ActivityExporter) Export(course canvas.Course, rows []harvest.ExportRow) (string, error) {
	path := filepath.Join(e.outputDir, FileName(course))

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.Record())
	}

	if err := e.csvWriter.WriteSimpleCSV(path, harvest.ExportHeader, records); err != nil {
		return "", err
	}
	return path, nil
}

// FileName returns the output file name for a course, with every
// non-alphanumeric rune of the course name replaced by an underscore.
func FileName(course canvas.Course) string {
	name := course.Name
	if name == "" {
		name = fmt.Sprintf("unknown-%d", course.ID)
	}
	return fmt.Sprintf("%d_%s_activity.csv", course.ID, sanitizeName(name))
}

func sanitizeName(name string) string {
	out := []rune(name)
	for i, r := range out {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			out[i] = '_'
		}
	}
	return string(out)
}
