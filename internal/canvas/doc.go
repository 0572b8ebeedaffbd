// Package canvas implements the Canvas LMS REST API client used by the
// export tools.
//
// This package contains three main components:
//
// Client: a bearer-authenticated HTTP client with typed operations for
// the resources the exporter needs (account course listings, course
// lookups, enrolled students, and per-student activity analytics).
//
// PageIterator: a lazy walker over paginated resources following the
// Link: rel="next" header convention, with bounded retry and exponential
// backoff for transient failures.
//
// Limiter: per-worker request pacing with adaptive degradation when the
// server answers 429. Each concurrent worker owns its own Client, and
// therefore its own Limiter; pacing state is never shared across workers.
package canvas
