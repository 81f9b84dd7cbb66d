// Package fanarttv wraps the fanart.tv music API, one of C6's artwork
// discovery sources (looked up by MusicBrainz release-group id).
package fanarttv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/musictaggerz/core/internal/ratelimit"
)

// baseURL is a var so tests can point the client at an httptest server.
var baseURL = "https://webservice.fanart.tv/v3"

// MinInterval follows fanart.tv's documented free-tier rate limit.
const MinInterval = 1 * time.Second

// Client fetches album covers from fanart.tv by release-group id.
type Client struct {
	rl     *ratelimit.Client
	apiKey string
}

// New builds a Client authenticated with apiKey.
func New(userAgent, apiKey string) *Client {
	return &Client{rl: ratelimit.New(MinInterval, userAgent), apiKey: apiKey}
}

type albumCover struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Likes string `json:"likes"`
}

type musicResponse struct {
	Albums map[string]struct {
		AlbumCover []albumCover `json:"albumcover"`
	} `json:"albums"`
}

// CoverURL returns the most-liked album cover URL for releaseGroupID,
// or ratelimit.ErrNotFound if fanart.tv has no covers for it.
func (c *Client) CoverURL(ctx context.Context, releaseGroupID string) (string, error) {
	if c.apiKey == "" {
		return "", ratelimit.ErrNotFound
	}

	body, err := c.rl.Get(ctx, fmt.Sprintf("%s/music/albums/%s?api_key=%s", baseURL, releaseGroupID, c.apiKey), nil)
	if err != nil {
		return "", err
	}

	var mr musicResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return "", fmt.Errorf("fanarttv: decode response: %w", err)
	}

	var best albumCover
	var bestLikes int
	found := false
	for _, entry := range mr.Albums {
		for _, cov := range entry.AlbumCover {
			var likes int
			fmt.Sscanf(cov.Likes, "%d", &likes)
			if !found || likes > bestLikes {
				best, bestLikes, found = cov, likes, true
			}
		}
	}
	if !found || best.URL == "" {
		return "", ratelimit.ErrNotFound
	}
	return best.URL, nil
}

// FetchArtwork resolves releaseGroupID to a cover URL and downloads it.
func (c *Client) FetchArtwork(ctx context.Context, releaseGroupID string) ([]byte, error) {
	u, err := c.CoverURL(ctx, releaseGroupID)
	if err != nil {
		return nil, err
	}
	return c.rl.Get(ctx, u, nil)
}
