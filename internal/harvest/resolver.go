package harvest

import (
	"context"
	"log/slog"
	"strings"

	"canvascli/internal/canvas"
	apperrors "canvascli/internal/errors"
)

// CourseClient is the slice of the Canvas client the resolver needs.
type CourseClient interface {
	GetCourse(ctx context.Context, courseID int64) (canvas.Course, error)
	ListAccountCourses(ctx context.Context, account string) ([]canvas.Course, error)
}

// ResolveOptions selects which courses a run processes. Explicit IDs take
// precedence over subaccount search.
type ResolveOptions struct {
	// CourseIDs, when non-empty, are fetched directly and Subaccount and
	// Search are ignored.
	CourseIDs []int64

	// Subaccount scopes the course listing; "self" (the default) is the
	// root account.
	Subaccount string

	// Search filters listed courses by case-insensitive substring match
	// on the course name.
	Search string
}

// Resolver turns a search term or an explicit ID list into a concrete
// set of courses.
type Resolver struct {
	client CourseClient
	logger *slog.Logger
}

// NewResolver creates a course resolver.
func NewResolver(client CourseClient, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, logger: logger}
}

// Resolve returns the courses to process. A missing or unfetchable
// explicit ID is warned about and skipped, never fatal; a failed
// subaccount listing is returned to the caller.
func (r *Resolver) Resolve(ctx context.Context, opts ResolveOptions) ([]canvas.Course, error) {
	if len(opts.CourseIDs) > 0 {
		return r.resolveByIDs(ctx, opts.CourseIDs), nil
	}
	return r.resolveBySearch(ctx, opts.Subaccount, opts.Search)
}

func (r *Resolver) resolveByIDs(ctx context.Context, ids []int64) []canvas.Course {
	courses := make([]canvas.Course, 0, len(ids))
	for _, id := range ids {
		course, err := r.client.GetCourse(ctx, id)
		if err != nil {
			resErr := &apperrors.ResolutionError{CourseID: id, Err: err}
			r.logger.Warn("skipping course that could not be resolved",
				slog.Int64("course_id", id),
				slog.String("error", resErr.Error()))
			continue
		}
		courses = append(courses, course)
	}
	return courses
}

func (r *Resolver) resolveBySearch(ctx context.Context, subaccount, search string) ([]canvas.Course, error) {
	if subaccount == "" {
		subaccount = "self"
	}

	courses, err := r.client.ListAccountCourses(ctx, subaccount)
	if err != nil {
		return nil, err
	}
	if search == "" {
		return courses, nil
	}

	needle := strings.ToLower(search)
	matched := courses[:0]
	for _, course := range courses {
		if strings.Contains(strings.ToLower(course.Name), needle) {
			matched = append(matched, course)
		}
	}
	return matched, nil
}
