// Package acoustid wraps the AcoustID lookup API and provides the
// sample Fingerprint generator used where no Chromaprint binding is
// available, per SPEC_FULL.md's §4.4 black-box treatment of C4.
package acoustid

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/musictaggerz/core/internal/fingerprint"
	"github.com/musictaggerz/core/internal/ratelimit"
)

// baseURL is a var so tests can point the client at an httptest server.
var baseURL = "https://api.acoustid.org/v2"

// MinInterval matches AcoustID's documented free-tier rate limit of 3
// requests per second; 350ms keeps a comfortable margin.
const MinInterval = 350 * time.Millisecond

// Client looks up recordings by fingerprint against the AcoustID API.
type Client struct {
	rl     *ratelimit.Client
	apiKey string
}

// New builds a Client authenticated with apiKey.
func New(userAgent, apiKey string) *Client {
	return &Client{rl: ratelimit.New(MinInterval, userAgent), apiKey: apiKey}
}

type lookupResult struct {
	Score    float64 `json:"score"`
	Releases []struct {
		ReleaseGroups []struct {
			Releases []struct {
				ID string `json:"id"`
			} `json:"releases"`
		} `json:"releasegroups"`
	} `json:"releases"`
}

type lookupResponse struct {
	Status  string         `json:"status"`
	Results []lookupResult `json:"results"`
}

// Lookup implements fingerprint.AcoustIDClient.
func (c *Client) Lookup(ctx context.Context, fp string, durationSec float64) ([]fingerprint.AcoustIDMatch, error) {
	if c.apiKey == "" {
		return nil, nil
	}

	q := url.Values{
		"client":      {c.apiKey},
		"meta":        {"releasegroups+releases"},
		"fingerprint": {fp},
		"duration":    {fmt.Sprintf("%.0f", durationSec)},
	}
	body, err := c.rl.Get(ctx, baseURL+"/lookup?"+q.Encode(), nil)
	if err != nil {
		if err == ratelimit.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	var resp lookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("acoustid: decode lookup response: %w", err)
	}

	var matches []fingerprint.AcoustIDMatch
	for _, res := range resp.Results {
		for _, rel := range res.Releases {
			for _, rg := range rel.ReleaseGroups {
				for _, r := range rg.Releases {
					matches = append(matches, fingerprint.AcoustIDMatch{ReleaseID: r.ID, Confidence: res.Score})
				}
			}
		}
	}
	return matches, nil
}

// Generator is a deterministic placeholder acoustic-fingerprint
// producer: it hashes the file's content together with its size into a
// stable hex digest. It is not bit-compatible with Chromaprint, but it
// satisfies fingerprint.Generator's contract (stable per file,
// different for different audio) so the sampling/aggregation pipeline
// can run without a cgo binding.
type Generator struct{}

// Fingerprint implements fingerprint.Generator.
func (Generator) Fingerprint(ctx context.Context, path string) (string, float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", 0, err
	}

	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", 0, err
	}

	sum := h.Sum(nil)
	sizeHash := fnv.New32a()
	fmt.Fprintf(sizeHash, "%d", info.Size())

	digest := hex.EncodeToString(sum[:8]) + fmt.Sprintf("%08x", sizeHash.Sum32())

	// Duration is not derivable from raw bytes without decoding the
	// container, so it is reported as 0.
	return digest, 0, nil
}
