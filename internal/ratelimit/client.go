// Package ratelimit provides the shared minimum-interval HTTP client
// throttle used by every external-service wrapper, generalized from
// the teacher's pkg/musicbrainz.Client (mu sync.Mutex + lastReq +
// pre-request sleep) into a reusable primitive.
package ratelimit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Client enforces a minimum gap between consecutive outbound requests
// for one external service, sleeping the calling goroutine before each
// request fires.
type Client struct {
	HTTP        *http.Client
	MinInterval time.Duration
	UserAgent   string

	mu      sync.Mutex
	lastReq time.Time
}

// New builds a Client with a sane default timeout and user agent.
func New(minInterval time.Duration, userAgent string) *Client {
	return &Client{
		HTTP:        &http.Client{Timeout: 20 * time.Second},
		MinInterval: minInterval,
		UserAgent:   userAgent,
	}
}

func (c *Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wait := c.MinInterval - time.Since(c.lastReq); wait > 0 {
		time.Sleep(wait)
	}
	c.lastReq = time.Now()
}

// ErrNotFound is returned by Get for HTTP 404 responses, which callers
// treat as "no data" rather than a transient failure.
var ErrNotFound = fmt.Errorf("ratelimit: not found")

// Get performs a rate-limited GET against url, returning the response
// body bytes. A 404 returns ErrNotFound. A 503 is retried once after a
// 2s pause and the retry's result is returned. Network errors, other
// 4xx/5xx statuses and body-read errors are returned as plain errors;
// each caller decides whether to log and continue or to fail.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	c.throttle()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		slog.Debug("ratelimit: 503, retrying once", "url", url)
		time.Sleep(2 * time.Second)
		return c.getOnce(ctx, url, headers)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ratelimit: unexpected status %d for %s", resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) getOnce(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("ratelimit: unexpected status %d for %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}
