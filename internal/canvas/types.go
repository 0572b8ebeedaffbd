package canvas

import "sort"

// Course is a top-level organizational unit in Canvas containing
// enrolled students. Courses are read-only snapshots resolved once per
// run.
type Course struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Student is an enrolled user in a course. Identity is scoped to the
// course: (course_id, student_id).
type Student struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ActivitySummary is the per-student analytics payload. PageViews is
// keyed by bucket timestamp; depending on the Canvas instance the buckets
// may be hourly RFC3339 timestamps or bare dates. Values can be null.
type ActivitySummary struct {
	PageViews map[string]*float64 `json:"page_views"`
}

// ActivityBucket is one normalized time bucket of a student's activity.
type ActivityBucket struct {
	Timestamp string
	PageViews int64
}

// Buckets returns the summary's page views as a slice sorted by bucket
// timestamp. Counts are coerced to non-negative integers; null values
// count as 0.
func (s ActivitySummary) Buckets() []ActivityBucket {
	if len(s.PageViews) == 0 {
		return nil
	}

	buckets := make([]ActivityBucket, 0, len(s.PageViews))
	for ts, views := range s.PageViews {
		var count int64
		if views != nil && *views > 0 {
			count = int64(*views + 0.5)
		}
		buckets = append(buckets, ActivityBucket{Timestamp: ts, PageViews: count})
	}

	// ISO timestamps sort correctly as strings, which keeps output
	// deterministic regardless of map iteration order.
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Timestamp < buckets[j].Timestamp
	})
	return buckets
}
