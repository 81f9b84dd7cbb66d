// Package itunes wraps the iTunes Search API, one of C6's artwork
// discovery sources and a candidate match-enrichment source.
package itunes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/musictaggerz/core/internal/ratelimit"
)

// baseURL is a var so tests can point the client at an httptest server.
var baseURL = "https://itunes.apple.com"

// MinInterval is conservative; Apple documents no hard published rate
// but throttles bursts aggressively.
const MinInterval = 500 * time.Millisecond

// Client searches iTunes for artist/album artwork.
type Client struct {
	rl *ratelimit.Client
}

// New builds a Client using userAgent for outbound requests.
func New(userAgent string) *Client {
	return &Client{rl: ratelimit.New(MinInterval, userAgent)}
}

type searchResult struct {
	ArtworkURL100 string `json:"artworkUrl100"`
	CollectionID  int64  `json:"collectionId"`
}

type searchResponse struct {
	Results []searchResult `json:"results"`
}

// ArtworkURL returns the highest-resolution artwork URL iTunes
// advertises (the 100x100 thumbnail URL with its size token bumped to
// 1200) for the best album/artist search match, or ratelimit.ErrNotFound.
func (c *Client) ArtworkURL(ctx context.Context, artist, album string) (string, error) {
	q := url.Values{
		"term":   {fmt.Sprintf("%s %s", artist, album)},
		"entity": {"album"},
		"limit":  {"5"},
	}
	body, err := c.rl.Get(ctx, baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("itunes: decode search response: %w", err)
	}
	if len(sr.Results) == 0 || sr.Results[0].ArtworkURL100 == "" {
		return "", ratelimit.ErrNotFound
	}

	return upscale(sr.Results[0].ArtworkURL100), nil
}

// FetchArtwork resolves artist/album to an artwork URL and downloads it.
func (c *Client) FetchArtwork(ctx context.Context, artist, album string) ([]byte, error) {
	u, err := c.ArtworkURL(ctx, artist, album)
	if err != nil {
		return nil, err
	}
	return c.rl.Get(ctx, u, nil)
}

// upscale rewrites iTunes's "100x100bb" size token to "1200x1200bb".
func upscale(artworkURL string) string {
	return strings.Replace(artworkURL, "100x100bb", "1200x1200bb", 1)
}
