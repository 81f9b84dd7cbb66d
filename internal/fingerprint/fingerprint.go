// Package fingerprint selects a sample of tracks, produces a compact
// acoustic signature for each via a pluggable Generator (no retrieved
// example vendors an actual Chromaprint binding, so C4's fingerprint
// generation is a black-box utility per spec.md §1's treatment of the
// image-dimension parser and loudness analyzer), queries AcoustID, and
// aggregates results by release the way spec.md §4.4 describes.
package fingerprint

import (
	"context"
	"sort"
)

// Generator produces a duration + compact fingerprint for one track.
// The one concrete implementation, acoustid.Generator, hashes the
// file's raw bytes together with its size and reports a duration of 0;
// it is not bit-compatible with real Chromaprint, but it satisfies the same
// "sample tracks -> acoustic signature -> AcoustID lookup" contract so
// Matcher/Scorer and the Orchestrator can be exercised end to end.
type Generator interface {
	Fingerprint(ctx context.Context, path string) (fingerprint string, durationSec float64, err error)
}

// AcoustIDClient looks up recordings/releases for a fingerprint.
type AcoustIDClient interface {
	Lookup(ctx context.Context, fingerprint string, durationSec float64) ([]AcoustIDMatch, error)
}

// AcoustIDMatch is one AcoustID lookup hit.
type AcoustIDMatch struct {
	ReleaseID  string
	Confidence float64 // 0..1
}

// SelectSampleTracks picks up to 5 tracks distributed evenly across
// paths, skipping any shorter than 30s (durations given in seconds,
// aligned by index with paths).
func SelectSampleTracks(paths []string, durations []float64) []string {
	type candidate struct {
		path string
		idx  int
	}
	var eligible []candidate
	for i, p := range paths {
		if i < len(durations) && durations[i] < 30 {
			continue
		}
		eligible = append(eligible, candidate{p, i})
	}
	if len(eligible) <= 5 {
		out := make([]string, len(eligible))
		for i, c := range eligible {
			out[i] = c.path
		}
		return out
	}

	step := float64(len(eligible)) / 5.0
	var out []string
	for i := 0; i < 5; i++ {
		idx := int(float64(i) * step)
		if idx >= len(eligible) {
			idx = len(eligible) - 1
		}
		out = append(out, eligible[idx].path)
	}
	return out
}

// Aggregate is one release's vote tally across sampled tracks.
type Aggregate struct {
	ReleaseID     string
	MatchedTracks int
	AvgScore      float64
}

// AggregateByRelease tallies matches across tracks: each track votes
// at most once per release, and avgScore is the mean AcoustID
// confidence across the votes that release received. Returns the top
// 10 aggregates sorted by (matchedTracks, avgScore) descending.
func AggregateByRelease(perTrackMatches [][]AcoustIDMatch) []Aggregate {
	sums := map[string]float64{}
	counts := map[string]int{}

	for _, matches := range perTrackMatches {
		seen := map[string]bool{}
		for _, m := range matches {
			if seen[m.ReleaseID] {
				continue
			}
			seen[m.ReleaseID] = true
			sums[m.ReleaseID] += m.Confidence
			counts[m.ReleaseID]++
		}
	}

	var out []Aggregate
	for id, count := range counts {
		out = append(out, Aggregate{
			ReleaseID:     id,
			MatchedTracks: count,
			AvgScore:      sums[id] / float64(count),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].MatchedTracks != out[j].MatchedTracks {
			return out[i].MatchedTracks > out[j].MatchedTracks
		}
		return out[i].AvgScore > out[j].AvgScore
	})

	if len(out) > 10 {
		out = out[:10]
	}
	return out
}
