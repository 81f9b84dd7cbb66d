// Package audiofolder classifies a directory as a flat album,
// multi-disc album, or non-album, and aggregates its tracks into an
// Album-shaped descriptor, grounded on the teacher's cmd/ingest folder
// walking and aggregation helpers (bestFolderImage, sortName, coalesce).
package audiofolder

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/musictaggerz/core/internal/tagcodec"
)

// Classification is the result of classifying a directory.
type Classification int

const (
	NonAlbum Classification = iota
	FlatAlbum
	MultiDiscAlbum
)

// DiscPattern is one configured disc-subfolder regex with its capture
// semantics: a numeric capture maps directly to a disc number; a
// single-letter capture maps alphabetically (A->1, B->2, ...).
type DiscPattern struct {
	Regexp *regexp.Regexp
}

var numeric = regexp.MustCompile(`^\d+$`)

// CompilePatterns compiles each raw regexp string (as configured via
// the disc_subfolder_patterns setting) into a DiscPattern, silently
// skipping any that fail to compile rather than failing the whole set.
func CompilePatterns(raw []string) []DiscPattern {
	patterns := make([]DiscPattern, 0, len(raw))
	for _, r := range raw {
		re, err := regexp.Compile(r)
		if err != nil {
			continue
		}
		patterns = append(patterns, DiscPattern{Regexp: re})
	}
	return patterns
}

// DiscNumberFor returns the disc number matched by name under any of
// patterns, or 0 if none match.
func DiscNumberFor(name string, patterns []DiscPattern) int {
	for _, p := range patterns {
		m := p.Regexp.FindStringSubmatch(name)
		if m == nil || len(m) < 2 {
			continue
		}
		cap := m[1]
		if numeric.MatchString(cap) {
			n := 0
			for _, c := range cap {
				n = n*10 + int(c-'0')
			}
			return n
		}
		if len(cap) == 1 {
			c := strings.ToUpper(cap)[0]
			if c >= 'A' && c <= 'Z' {
				return int(c-'A') + 1
			}
		}
	}
	return 0
}

// Classify inspects dir's immediate children.
func Classify(dir string, patterns []DiscPattern) (Classification, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return NonAlbum, err
	}

	hasAudio := false
	discDirs := 0
	for _, e := range entries {
		if e.IsDir() {
			if DiscNumberFor(e.Name(), patterns) > 0 {
				sub, err := os.ReadDir(filepath.Join(dir, e.Name()))
				if err == nil && containsAudio(sub) {
					discDirs++
				}
			}
			continue
		}
		if tagcodec.Supported(filepath.Ext(e.Name())) {
			hasAudio = true
		}
	}

	switch {
	case discDirs > 0:
		return MultiDiscAlbum, nil
	case hasAudio:
		return FlatAlbum, nil
	default:
		return NonAlbum, nil
	}
}

func containsAudio(entries []os.DirEntry) bool {
	for _, e := range entries {
		if !e.IsDir() && tagcodec.Supported(filepath.Ext(e.Name())) {
			return true
		}
	}
	return false
}

// TrackRecord is a single aggregated track read from disk.
type TrackRecord struct {
	Path        string
	DiscNumber  int
	TrackNumber *int
	Title       *string
	Artist      *string
	AlbumArtist *string
	Album       *string
	Year        *int
	Duration    *float64
}

// Aggregate is the Album-level descriptor produced by ScanAlbum.
type Aggregate struct {
	Artist        *string
	Title         *string
	Year          *int
	Tracks        []TrackRecord
	TrackCount    int
	DiscCount     int
	TracksPerDisc map[int]int
}

// ScanAlbum walks dir (recursing into disc subfolders per patterns),
// reads every audio file's tags, and aggregates them into an Aggregate.
// Artist/Title/Year are chosen by plurality vote over per-track values
// (album-artist wins over artist when present). Returns (nil, nil) if
// no tracks were readable.
func ScanAlbum(dir string, patterns []DiscPattern, readTags func(path string) (tagcodec.Record, error)) (*Aggregate, error) {
	var tracks []TrackRecord

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	for _, e := range entries {
		if e.IsDir() {
			disc := DiscNumberFor(e.Name(), patterns)
			if disc == 0 {
				continue
			}
			sub, err := os.ReadDir(filepath.Join(dir, e.Name()))
			if err != nil {
				continue
			}
			for _, f := range sub {
				if f.IsDir() || !tagcodec.Supported(filepath.Ext(f.Name())) {
					continue
				}
				p := filepath.Join(dir, e.Name(), f.Name())
				if tr, ok := readTrack(p, disc, readTags); ok {
					tracks = append(tracks, tr)
				}
			}
			continue
		}
		if !tagcodec.Supported(filepath.Ext(e.Name())) {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if tr, ok := readTrack(p, 1, readTags); ok {
			tracks = append(tracks, tr)
		}
	}

	if len(tracks) == 0 {
		return nil, nil
	}

	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].DiscNumber != tracks[j].DiscNumber {
			return tracks[i].DiscNumber < tracks[j].DiscNumber
		}
		ti, tj := 0, 0
		if tracks[i].TrackNumber != nil {
			ti = *tracks[i].TrackNumber
		}
		if tracks[j].TrackNumber != nil {
			tj = *tracks[j].TrackNumber
		}
		return ti < tj
	})

	agg := &Aggregate{
		Tracks:        tracks,
		TrackCount:    len(tracks),
		TracksPerDisc: map[int]int{},
	}
	discs := map[int]bool{}
	for _, tr := range tracks {
		discs[tr.DiscNumber] = true
		agg.TracksPerDisc[tr.DiscNumber]++
	}
	agg.DiscCount = len(discs)

	agg.Artist = pluralityArtist(tracks)
	agg.Title = plurality(extractAlbum(tracks))
	agg.Year = pluralityYear(tracks)

	return agg, nil
}

func readTrack(path string, disc int, readTags func(string) (tagcodec.Record, error)) (TrackRecord, bool) {
	rec, err := readTags(path)
	if err != nil {
		return TrackRecord{}, false
	}
	return TrackRecord{
		Path:        path,
		DiscNumber:  disc,
		TrackNumber: rec.TrackNumber,
		Title:       rec.Title,
		Artist:      rec.Artist,
		AlbumArtist: rec.AlbumArtist,
		Album:       rec.Album,
		Year:        rec.Year,
	}, true
}

// pluralityArtist has each track vote once: with its AlbumArtist
// (weighted 2) when that is set, otherwise with its Artist (weighted 1).
func pluralityArtist(tracks []TrackRecord) *string {
	counts := map[string]int{}
	for _, t := range tracks {
		if t.AlbumArtist != nil && *t.AlbumArtist != "" {
			counts[*t.AlbumArtist] += 2
		} else if t.Artist != nil && *t.Artist != "" {
			counts[*t.Artist]++
		}
	}
	return topKey(counts)
}

func extractAlbum(tracks []TrackRecord) []string {
	var vals []string
	for _, t := range tracks {
		if t.Album != nil && *t.Album != "" {
			vals = append(vals, *t.Album)
		}
	}
	return vals
}

func plurality(vals []string) *string {
	counts := map[string]int{}
	for _, v := range vals {
		counts[v]++
	}
	return topKey(counts)
}

func pluralityYear(tracks []TrackRecord) *int {
	counts := map[int]int{}
	for _, t := range tracks {
		if t.Year != nil {
			counts[*t.Year]++
		}
	}
	best, bestCount := 0, 0
	for y, c := range counts {
		if c > bestCount {
			best, bestCount = y, c
		}
	}
	if bestCount == 0 {
		return nil
	}
	return &best
}

func topKey(counts map[string]int) *string {
	best, bestCount := "", 0
	for k, c := range counts {
		if c > bestCount {
			best, bestCount = k, c
		}
	}
	if bestCount == 0 {
		return nil
	}
	return &best
}
