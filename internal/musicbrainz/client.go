// Package musicbrainz is a thin typed client over the MusicBrainz WS
// v2 API, adapted from the teacher's pkg/musicbrainz.Client: the
// request-throttling and response-decoding shape is kept, generalized
// onto the shared ratelimit.Client and onto the Matcher's two-phase
// search-then-detail-fetch needs (search returns stubs; GetRelease fetches
// full release details with tracks).
package musicbrainz

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/musictaggerz/core/internal/ratelimit"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// MinInterval is the minimum gap between requests per spec (>=1.1s).
const MinInterval = 1100 * time.Millisecond

// Client wraps a rate-limited MusicBrainz Web Service v2 client.
// BaseURL defaults to the real API and is exported so callers outside
// this package (the Orchestrator's tests) can redirect it to an
// httptest.Server.
type Client struct {
	rl      *ratelimit.Client
	BaseURL string
}

// New builds a Client that sends its requests through rl.
func New(rl *ratelimit.Client) *Client {
	return &Client{rl: rl, BaseURL: defaultBaseURL}
}

// ReleaseGroupSearchResult is one search-level release-group stub.
type ReleaseGroupSearchResult struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	ArtistCredit []Credit `json:"artist-credit"`
	FirstRelease string   `json:"first-release-date"`
}

// Credit is one artist-credit entry.
type Credit struct {
	Name   string `json:"name"`
	Artist struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"artist"`
}

type releaseSearchResponse struct {
	Releases []ReleaseStub `json:"releases"`
}

// ReleaseStub is a search-level release result (before detail fetch).
type ReleaseStub struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Date          string   `json:"date"`
	Country       string   `json:"country"`
	Barcode       string   `json:"barcode"`
	ArtistCredit  []Credit `json:"artist-credit"`
	ReleaseGroup  struct {
		ID              string `json:"id"`
		FirstReleaseDate string `json:"first-release-date"`
	} `json:"release-group"`
	Media []Medium `json:"media"`
	LabelInfo []struct {
		Label struct {
			Name string `json:"name"`
		} `json:"label"`
	} `json:"label-info"`
}

// Medium is one disc/media entry within a release.
type Medium struct {
	Format     string  `json:"format"`
	Position   int     `json:"position"`
	TrackCount int     `json:"track-count"`
	Tracks     []Track `json:"tracks"`
}

// Track is one MusicBrainz recording-on-a-release entry.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Number   string `json:"number"`
	Position int    `json:"position"`
	Length   int    `json:"length"` // milliseconds
	Recording struct {
		ID string `json:"id"`
	} `json:"recording"`
}

// TotalTrackCount sums TrackCount across all media.
func (r ReleaseStub) TotalTrackCount() int {
	n := 0
	for _, m := range r.Media {
		n += m.TrackCount
	}
	return n
}

// ArtistName returns the first artist-credit name, if any.
func (r ReleaseStub) ArtistName() string {
	if len(r.ArtistCredit) > 0 {
		return r.ArtistCredit[0].Name
	}
	return ""
}

// SearchRelease issues a text search for (artist, album) and returns up
// to limit release stubs (spec default: 15).
func (c *Client) SearchRelease(ctx context.Context, artist, album string, limit int) ([]ReleaseStub, error) {
	q := fmt.Sprintf(`artist:"%s" AND release:"%s"`, quoteQuery(artist), quoteQuery(album))
	u := fmt.Sprintf("%s/release/?query=%s&fmt=json&limit=%d", c.BaseURL, url.QueryEscape(q), limit)

	body, err := c.rl.Get(ctx, u, nil)
	if err != nil {
		return nil, err
	}

	var resp releaseSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, err
	}
	return resp.Releases, nil
}

// GetRelease fetches full release details (tracks, durations, labels,
// release-group, genres/tags) for releaseID. This is the expensive
// per-candidate detail fetch the two-phase scorer limits to the top 5.
func (c *Client) GetRelease(ctx context.Context, releaseID string) (*ReleaseStub, error) {
	u := fmt.Sprintf("%s/release/%s?inc=recordings+artist-credits+labels+release-groups+tags&fmt=json", c.BaseURL, releaseID)

	body, err := c.rl.Get(ctx, u, nil)
	if err != nil {
		return nil, err
	}

	var rel ReleaseStub
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, err
	}
	return &rel, nil
}

// quoteQuery Lucene-escapes special characters in a search term.
func quoteQuery(s string) string {
	special := `+-&&||!(){}[]^"~*?:\/`
	var b strings.Builder
	for _, r := range s {
		if strings.ContainsRune(special, r) {
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
