// Package coverartarchive wraps the Cover Art Archive image API, one
// of C6's five artwork discovery sources.
package coverartarchive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/musictaggerz/core/internal/ratelimit"
)

// baseURL is a var so tests can point the client at an httptest server.
var baseURL = "https://coverartarchive.org"

// MinInterval matches the 1 req/s Cover Art Archive asks clients to
// respect (it fronts the same infrastructure as MusicBrainz).
const MinInterval = 1100 * time.Millisecond

// Client fetches front-cover images by MusicBrainz release id.
type Client struct {
	rl *ratelimit.Client
}

// New builds a Client using userAgent for outbound requests.
func New(userAgent string) *Client {
	return &Client{rl: ratelimit.New(MinInterval, userAgent)}
}

type imageEntry struct {
	Front bool   `json:"front"`
	Image string `json:"image"`
}

type releaseResponse struct {
	Images []imageEntry `json:"images"`
}

// FrontImage returns the raw bytes of the release's front cover, or
// ratelimit.ErrNotFound if the release has no archived cover art.
func (c *Client) FrontImage(ctx context.Context, releaseID string) ([]byte, error) {
	body, err := c.rl.Get(ctx, fmt.Sprintf("%s/release/%s", baseURL, releaseID), map[string]string{"Accept": "application/json"})
	if err != nil {
		return nil, err
	}

	var rr releaseResponse
	if err := json.Unmarshal(body, &rr); err != nil {
		return nil, fmt.Errorf("coverartarchive: decode release %s: %w", releaseID, err)
	}

	var frontURL string
	for _, img := range rr.Images {
		if img.Front {
			frontURL = img.Image
			break
		}
	}
	if frontURL == "" && len(rr.Images) > 0 {
		frontURL = rr.Images[0].Image
	}
	if frontURL == "" {
		return nil, ratelimit.ErrNotFound
	}

	return c.rl.Get(ctx, frontURL, nil)
}
