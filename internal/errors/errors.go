// Package errors defines the error taxonomy for the Canvas export tools.
//
// The taxonomy mirrors how failures propagate: ConfigError is fatal and
// aborts before any course work; ResolutionError skips a single course
// lookup; FetchError and ExportError abort one course's harvest and are
// contained at the course boundary by the processor; RollupError is
// contained at the file boundary by the rollup step.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ConfigError indicates invalid or missing configuration. It is the only
// process-fatal error class.
type ConfigError struct {
	Field   string
	Message string
}

// NewConfigError creates a ConfigError for the given field.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ResolutionError indicates a single course lookup failed. Callers warn
// and skip the course; it is never fatal.
type ResolutionError struct {
	CourseID int64
	Err      error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve course %d: %v", e.CourseID, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// FetchError indicates a paginated request failed permanently, either by
// exhausting retries or by hitting a non-retryable status. It carries
// enough context to log the failure once with full detail.
type FetchError struct {
	Resource   string // API path, e.g. "courses/42/users"
	Page       int    // 1-based page number that failed
	StatusCode int    // last HTTP status, 0 for transport errors
	Err        error  // last underlying error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s page %d: status %d: %v", e.Resource, e.Page, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s page %d: %v", e.Resource, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ExportError indicates a CSV file write failed.
type ExportError struct {
	Path string
	Err  error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Path, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// RollupError indicates a single input file could not be rolled up.
// The rollup step records it and continues with the remaining files.
type RollupError struct {
	File string
	Err  error
}

func (e *RollupError) Error() string {
	return fmt.Sprintf("rollup %s: %v", e.File, e.Err)
}

func (e *RollupError) Unwrap() error { return e.Err }

// IsRetryableStatus reports whether an HTTP status is transient and worth
// retrying: 429 and all 5xx.
func IsRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
