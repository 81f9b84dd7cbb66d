// Package lrclib wraps the LRCLIB lyrics API: an exact get by
// artist/album/track/duration, then a fuzzier search, grounded on the
// teacher's lyricfetch.go lrclibGet/lrclibSearch pair.
package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/musictaggerz/core/internal/ratelimit"
)

// baseURL is a var so tests can point the client at an httptest server.
var baseURL = "https://lrclib.net/api"

// MinInterval follows LRCLIB's documented polite-use interval; it
// publishes no hard rate limit.
const MinInterval = 340 * time.Millisecond

// resultLimit caps how many search hits are inspected, matching the
// teacher's RESULT_LIMIT = 3.
const resultLimit = 3

// Result holds one lyrics hit.
type Result struct {
	LRC      string
	Plain    string
	Provider string
}

// Client queries LRCLIB for lyrics.
type Client struct {
	rl *ratelimit.Client
}

// New builds a Client using userAgent for outbound requests.
func New(userAgent string) *Client {
	return &Client{rl: ratelimit.New(MinInterval, userAgent)}
}

// Get performs the exact duration-disambiguated lookup.
func (c *Client) Get(ctx context.Context, artist, album, title string, durationSec int) (*Result, error) {
	u := fmt.Sprintf("%s/get?artist_name=%s&album_name=%s&track_name=%s&duration=%d",
		baseURL, url.QueryEscape(artist), url.QueryEscape(album), url.QueryEscape(title), durationSec)
	body, err := c.rl.Get(ctx, u, nil)
	if err != nil {
		return nil, err
	}
	return parseItem(body)
}

// Search performs the fuzzier lookup without duration, preferring the
// first result carrying synced lyrics, falling back to the first
// carrying plain lyrics.
func (c *Client) Search(ctx context.Context, artist, album, title string) (*Result, error) {
	u := fmt.Sprintf("%s/search?artist_name=%s&album_name=%s&track_name=%s",
		baseURL, url.QueryEscape(artist), url.QueryEscape(album), url.QueryEscape(title))
	body, err := c.rl.Get(ctx, u, nil)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil || len(items) == 0 {
		return nil, ratelimit.ErrNotFound
	}

	var plainFallback *Result
	for i, raw := range items {
		if i >= resultLimit {
			break
		}
		res, err := parseItem(raw)
		if err != nil {
			continue
		}
		if res.LRC != "" {
			return res, nil
		}
		if plainFallback == nil && res.Plain != "" {
			plainFallback = res
		}
	}
	if plainFallback != nil {
		return plainFallback, nil
	}
	return nil, ratelimit.ErrNotFound
}

func parseItem(data []byte) (*Result, error) {
	var item struct {
		SyncedLyrics string `json:"syncedLyrics"`
		PlainLyrics  string `json:"plainLyrics"`
	}
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, err
	}
	if item.SyncedLyrics == "" && item.PlainLyrics == "" {
		return nil, ratelimit.ErrNotFound
	}
	return &Result{LRC: item.SyncedLyrics, Plain: item.PlainLyrics, Provider: "lrclib"}, nil
}
