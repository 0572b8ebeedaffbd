package exporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	apperrors "canvascli/internal/errors"
)

// CSVWriter provides CSV export functionality.
type CSVWriter struct{}

// NewCSVWriter creates a new CSV writer instance.
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

// WriteOptions configures CSV writing behavior.
type WriteOptions struct {
	Headers []string
	Records [][]string
}

// WriteCSV writes data to a CSV file with the given options, replacing
// any existing file. The target directory is created if needed. Failures
// are reported as ExportError.
func (w *CSVWriter) WriteCSV(filePath string, options WriteOptions) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return &apperrors.ExportError{Path: filePath, Err: fmt.Errorf("create directory: %w", err)}
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return &apperrors.ExportError{Path: filePath, Err: err}
	}
	defer file.Close()

	writer := csv.NewWriter(file)

	if len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return &apperrors.ExportError{Path: filePath, Err: fmt.Errorf("write headers: %w", err)}
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return &apperrors.ExportError{Path: filePath, Err: fmt.Errorf("write record %d: %w", i, err)}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return &apperrors.ExportError{Path: filePath, Err: err}
	}
	if err := file.Close(); err != nil {
		return &apperrors.ExportError{Path: filePath, Err: err}
	}
	return nil
}

// WriteSimpleCSV writes a CSV file with a header row and records.
func (w *CSVWriter) WriteSimpleCSV(filePath string, headers []string, records [][]string) error {
	return w.WriteCSV(filePath, WriteOptions{
		Headers: headers,
		Records: records,
	})
}
