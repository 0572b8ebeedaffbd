package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"canvascli/internal/config"
)

// Client talks to the Canvas REST API. It owns a single worker's pacing
// state, so concurrent course workers should each construct their own
// Client rather than share one.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *Limiter
	logger     *slog.Logger

	perPage        int
	maxRetries     int
	retryBaseDelay time.Duration

	// sleep is the backoff delay between retry attempts. Tests inject a
	// recording implementation so retry timing runs without real sleeps.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Canvas API client from configuration.
func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: cfg.HTTP.Timeout,
		},
		limiter:        NewLimiter(cfg.Rate),
		logger:         logger,
		perPage:        cfg.HTTP.PerPage,
		maxRetries:     cfg.HTTP.MaxRetries,
		retryBaseDelay: cfg.HTTP.RetryBaseDelay,
		sleep:          sleepContext,
	}
}

// Limiter exposes the client's pacing state, mainly for tests.
func (c *Client) Limiter() *Limiter { return c.limiter }

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// ListAccountCourses lists every course under the given subaccount.
// Pass "self" for the root account.
func (c *Client) ListAccountCourses(ctx context.Context, account string) ([]Course, error) {
	if account == "" {
		account = "self"
	}
	resource := fmt.Sprintf("accounts/%s/courses", url.PathEscape(account))

	items, err := c.FetchAll(ctx, resource, nil)
	if err != nil {
		return nil, err
	}
	return decodeMany[Course](resource, items)
}

// GetCourse fetches a single course by ID.
func (c *Client) GetCourse(ctx context.Context, courseID int64) (Course, error) {
	resource := fmt.Sprintf("courses/%d", courseID)

	items, err := c.FetchAll(ctx, resource, nil)
	if err != nil {
		return Course{}, err
	}
	if len(items) == 0 {
		return Course{}, fmt.Errorf("no data returned for course %d", courseID)
	}

	var course Course
	if err := json.Unmarshal(items[0], &course); err != nil {
		return Course{}, fmt.Errorf("decode course %d: %w", courseID, err)
	}
	return course, nil
}

// ListStudents lists every user enrolled as a student in the course.
func (c *Client) ListStudents(ctx context.Context, courseID int64) ([]Student, error) {
	resource := fmt.Sprintf("courses/%d/users", courseID)
	query := url.Values{"enrollment_type[]": []string{"student"}}

	items, err := c.FetchAll(ctx, resource, query)
	if err != nil {
		return nil, err
	}
	return decodeMany[Student](resource, items)
}

// GetStudentActivity fetches the page-view analytics for one student in
// one course. A student with no analytics data yields an empty summary,
// not an error.
func (c *Client) GetStudentActivity(ctx context.Context, courseID, studentID int64) (ActivitySummary, error) {
	resource := fmt.Sprintf("courses/%d/analytics/users/%d/activity", courseID, studentID)

	items, err := c.FetchAll(ctx, resource, nil)
	if err != nil {
		return ActivitySummary{}, err
	}
	if len(items) == 0 {
		return ActivitySummary{}, nil
	}

	var summary ActivitySummary
	if err := json.Unmarshal(items[0], &summary); err != nil {
		return ActivitySummary{}, fmt.Errorf("decode activity for student %d: %w", studentID, err)
	}
	return summary, nil
}

func decodeMany[T any](resource string, items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, fmt.Errorf("decode %s item %d: %w", resource, i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// parseRetryAfter reads a Retry-After header value in seconds. Malformed
// or absent values yield 0.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
