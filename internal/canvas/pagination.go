package canvas

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "canvascli/internal/errors"
)

// maxRetryDelay caps the exponential backoff between attempts.
const maxRetryDelay = 30 * time.Second

// maxErrorBodyBytes bounds how much of an error response body is carried
// into error messages and logs.
const maxErrorBodyBytes = 200

// PageIterator walks a paginated resource one page at a time, following
// the Link: rel="next" convention until the server stops providing a next
// page. It is a lazy, restartable-by-recreation sequence: consumers pull
// pages as needed and call Paginate again to start over.
type PageIterator struct {
	client   *Client
	resource string
	pageURL  string
	query    url.Values
	page     int
	done     bool
}

// Paginate prepares an iterator over the given API resource. The query is
// sent with the first request only; next links embed their own query.
func (c *Client) Paginate(resource string, query url.Values) *PageIterator {
	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	if q.Get("per_page") == "" {
		q.Set("per_page", fmt.Sprint(c.perPage))
	}
	return &PageIterator{
		client:   c,
		resource: resource,
		pageURL:  c.baseURL + "/" + resource,
		query:    q,
	}
}

// HasNext reports whether another page may be available.
func (it *PageIterator) HasNext() bool { return !it.done }

// Next fetches the next page and returns its items. After the final page
// HasNext reports false. A permanent failure ends the iteration and
// returns the FetchError.
func (it *PageIterator) Next(ctx context.Context) ([]json.RawMessage, error) {
	if it.done {
		return nil, nil
	}

	it.page++
	items, next, err := it.client.getPage(ctx, it.resource, it.page, it.pageURL, it.query)
	if err != nil {
		it.done = true
		return nil, err
	}

	// Query parameters are baked into the next link from here on.
	it.query = nil

	if next == "" {
		it.done = true
	} else {
		it.pageURL = next
	}
	return items, nil
}

// FetchAll drains a paginated resource into a flat record sequence in
// stable server order.
func (c *Client) FetchAll(ctx context.Context, resource string, query url.Values) ([]json.RawMessage, error) {
	it := c.Paginate(resource, query)

	var all []json.RawMessage
	for it.HasNext() {
		items, err := it.Next(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
	}
	return all, nil
}

// getPage requests one page, retrying transient failures (network errors,
// timeouts, 5xx, 429) with exponential backoff. Non-retryable statuses
// and retry exhaustion produce a FetchError. The limiter is acquired
// before every attempt, so a 429 penalty also delays the retry.
func (c *Client) getPage(ctx context.Context, resource string, page int, pageURL string, query url.Values) ([]json.RawMessage, string, error) {
	var (
		lastErr    error
		lastStatus int
	)
	delay := c.retryBaseDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying page request",
				slog.String("resource", resource),
				slog.Int("page", page),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("last_error", lastErr.Error()))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, "", &apperrors.FetchError{Resource: resource, Page: page, StatusCode: lastStatus, Err: err}
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}

		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, "", &apperrors.FetchError{Resource: resource, Page: page, StatusCode: lastStatus, Err: err}
		}

		items, next, status, err := c.doPage(ctx, pageURL, query)
		if err == nil {
			return items, next, nil
		}
		lastErr, lastStatus = err, status

		if status != 0 && !apperrors.IsRetryableStatus(status) {
			return nil, "", &apperrors.FetchError{Resource: resource, Page: page, StatusCode: status, Err: err}
		}
	}

	fetchErr := &apperrors.FetchError{Resource: resource, Page: page, StatusCode: lastStatus, Err: lastErr}
	c.logger.Error("page request failed after retries",
		slog.String("resource", resource),
		slog.Int("page", page),
		slog.Int("attempts", c.maxRetries+1),
		slog.String("error", fetchErr.Error()))
	return nil, "", fetchErr
}

// doPage issues a single page request. It returns the decoded items and
// the next-page URL on success, or the HTTP status (0 for transport
// errors) and an error otherwise.
func (c *Client) doPage(ctx context.Context, pageURL string, query url.Values) ([]json.RawMessage, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", 0, err
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", 0, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
			c.limiter.Penalize(retryAfter)
			c.logger.Warn("rate limited by server",
				slog.String("url", req.URL.Path),
				slog.Duration("retry_after", retryAfter))
		}
		return nil, "", resp.StatusCode, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, truncate(body))
	}

	items, err := decodeItems(body)
	if err != nil {
		return nil, "", resp.StatusCode, fmt.Errorf("parse response: %w (body: %s)", err, truncate(body))
	}
	return items, nextLink(resp.Header.Get("Link")), resp.StatusCode, nil
}

// decodeItems parses a response body that is either a JSON array of
// records or a single JSON object, which counts as a one-element page.
// An empty body yields no items.
func decodeItems(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var item json.RawMessage
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, err
	}
	return []json.RawMessage{item}, nil
}

// nextLink extracts the rel="next" URL from a Link header, or "" when the
// server signals no further pages.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(part, ";")
		if len(sections) < 2 {
			continue
		}
		target := strings.Trim(strings.TrimSpace(sections[0]), "<>")
		for _, param := range sections[1:] {
			if strings.TrimSpace(param) == `rel="next"` {
				return target
			}
		}
	}
	return ""
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBodyBytes {
		return s[:maxErrorBodyBytes]
	}
	return s
}
