// Package lyrics implements C15: LRCLIB get, then LRCLIB search, the
// same fallback chain as the teacher's lyricfetch.Search. The
// teacher's NetEase third provider is dropped — SPEC_FULL.md names
// only LRCLIB as the lyrics source.
package lyrics

import (
	"context"
	"fmt"

	"github.com/musictaggerz/core/internal/lrclib"
)

// Result mirrors lrclib.Result for callers that only depend on this package.
type Result = lrclib.Result

// provider is the subset of *lrclib.Client Fetch depends on, so tests
// can substitute a fake instead of an httptest server.
type provider interface {
	Get(ctx context.Context, artist, album, title string, durationSec int) (*lrclib.Result, error)
	Search(ctx context.Context, artist, album, title string) (*lrclib.Result, error)
}

// Client looks up lyrics via LRCLIB, exact-get first, then search.
type Client struct {
	provider provider
}

// New builds a Client using userAgent for outbound requests.
func New(userAgent string) *Client {
	return &Client{provider: lrclib.New(userAgent)}
}

// Fetch returns the best available lyrics for one track, or an error
// if neither LRCLIB lookup mode produced a hit.
func (c *Client) Fetch(ctx context.Context, artist, album, title string, durationSec int) (*Result, error) {
	if res, err := c.provider.Get(ctx, artist, album, title, durationSec); err == nil {
		return res, nil
	}
	if res, err := c.provider.Search(ctx, artist, album, title); err == nil {
		return res, nil
	}
	return nil, fmt.Errorf("lyrics: no results for %s - %s", artist, title)
}
