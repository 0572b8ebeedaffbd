package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvascli/internal/config"
	apperrors "canvascli/internal/errors"
)

func newTestClient(baseURL string) *Client {
	cfg := &config.Config{
		APIKey:  "test-token",
		BaseURL: baseURL,
		HTTP: config.HTTPConfig{
			Timeout:        5 * time.Second,
			PerPage:        2,
			MaxRetries:     3,
			RetryBaseDelay: time.Millisecond,
		},
		Rate: config.RateConfig{MinInterval: time.Microsecond, Burst: 1},
	}
	return NewClient(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// pagedServer serves n sequential integer records in pages of the
// requested per_page size, with Link rel="next" headers between pages.
func pagedServer(t *testing.T, n int, requests *atomic.Int64) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)

		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		perPage, err := strconv.Atoi(r.URL.Query().Get("per_page"))
		require.NoError(t, err)
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			page, err = strconv.Atoi(p)
			require.NoError(t, err)
		}

		first := (page - 1) * perPage
		var items []int
		for i := first; i < first+perPage && i < n; i++ {
			items = append(items, i)
		}

		if first+perPage < n {
			w.Header().Set("Link", fmt.Sprintf(`<%s%s?page=%d&per_page=%d>; rel="next"`,
				server.URL, r.URL.Path, page+1, perPage))
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(items))
	}))
	return server
}

func TestFetchAllWalksEveryPage(t *testing.T) {
	tests := []struct {
		name         string
		records      int
		wantRequests int64
	}{
		{name: "multiple full pages", records: 6, wantRequests: 3},
		{name: "partial last page", records: 5, wantRequests: 3},
		{name: "single page", records: 2, wantRequests: 1},
		{name: "empty resource", records: 0, wantRequests: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests atomic.Int64
			server := pagedServer(t, tt.records, &requests)
			defer server.Close()

			client := newTestClient(server.URL)
			items, err := client.FetchAll(context.Background(), "courses/1/users", nil)
			require.NoError(t, err)

			assert.Len(t, items, tt.records)
			assert.Equal(t, tt.wantRequests, requests.Load())

			// Server order is preserved across page boundaries.
			for i, item := range items {
				var v int
				require.NoError(t, json.Unmarshal(item, &v))
				assert.Equal(t, i, v)
			}
		})
	}
}

func TestPageIteratorIsLazy(t *testing.T) {
	var requests atomic.Int64
	server := pagedServer(t, 6, &requests)
	defer server.Close()

	client := newTestClient(server.URL)
	it := client.Paginate("items", nil)

	require.True(t, it.HasNext())
	assert.Equal(t, int64(0), requests.Load())

	first, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Equal(t, int64(1), requests.Load())
	assert.True(t, it.HasNext())
}

func TestGetPageRetriesTransientErrors(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			http.Error(w, "upstream exploded", http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `[{"id": 1}]`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	var delays []time.Duration
	client.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	items, err := client.FetchAll(context.Background(), "items", nil)
	require.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, int64(3), requests.Load())

	// Exponential backoff: each delay doubles the previous one.
	require.Len(t, delays, 2)
	assert.Equal(t, client.retryBaseDelay, delays[0])
	assert.Equal(t, 2*client.retryBaseDelay, delays[1])
}

func TestGetPageRetryExhaustion(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "still broken", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	_, err := client.FetchAll(context.Background(), "items", nil)
	require.Error(t, err)

	var fetchErr *apperrors.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "items", fetchErr.Resource)
	assert.Equal(t, 1, fetchErr.Page)
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)

	// Initial attempt plus MaxRetries retries.
	assert.Equal(t, int64(4), requests.Load())
}

func TestGetPageDoesNotRetryClientErrors(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, "no such course", http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.FetchAll(context.Background(), "courses/999", nil)

	var fetchErr *apperrors.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, int64(1), requests.Load())
}

func TestGetPageRateLimitPenalizesAndRetries(t *testing.T) {
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `[]`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	client.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	before := client.limiter.Interval()

	_, err := client.FetchAll(context.Background(), "items", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(2), requests.Load())
	assert.Greater(t, client.limiter.Interval(), before)
}

func TestDecodeItems(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantItems int
		wantErr   bool
	}{
		{name: "array", body: `[{"id":1},{"id":2}]`, wantItems: 2},
		{name: "single object", body: `{"id":1}`, wantItems: 1},
		{name: "empty array", body: `[]`, wantItems: 0},
		{name: "empty body", body: "", wantItems: 0},
		{name: "whitespace body", body: "  \n ", wantItems: 0},
		{name: "malformed", body: `{"id":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := decodeItems([]byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, items, tt.wantItems)
		})
	}
}

func TestNextLink(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   string
	}{
		{
			name:   "next among rels",
			header: `<https://example.com/api/v1/courses?page=2>; rel="next", <https://example.com/api/v1/courses?page=1>; rel="first"`,
			want:   "https://example.com/api/v1/courses?page=2",
		},
		{
			name:   "no next",
			header: `<https://example.com/api/v1/courses?page=1>; rel="first"`,
			want:   "",
		},
		{name: "empty header", header: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextLink(tt.header))
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseRetryAfter("2"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-1"))
}
