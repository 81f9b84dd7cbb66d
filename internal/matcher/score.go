package matcher

import (
	"math"

	"github.com/musictaggerz/core/internal/musicbrainz"
)

// LocalAlbum is the local side of a match: the audio-folder aggregate
// shaped for scoring.
type LocalAlbum struct {
	Artist       string
	Album        string
	Year         int // 0 = unknown
	TrackCount   int
	DiscCount    int
	TrackLengths map[[2]int]float64 // (disc, track) -> seconds; disc defaults to 1
}

// FingerprintAggregate is C4's per-release aggregate fed into scoring.
type FingerprintAggregate struct {
	ReleaseID     string
	MatchedTracks int
	AvgScore      float64 // 0..1
}

// FingerprintBonus implements spec.md §4.4's bonus formula.
func FingerprintBonus(localTrackCount int, agg FingerprintAggregate) float64 {
	if localTrackCount == 0 {
		return 0
	}
	ratio := float64(agg.MatchedTracks) / float64(localTrackCount)
	bonus := math.Min(15, ratio*10+agg.AvgScore*5)
	if bonus < 0 {
		return 0
	}
	return bonus
}

// Settings carries the scoring-relevant configuration (preferred
// countries/media in priority order, thresholds).
type Settings struct {
	PreferredCountries []string
	PreferredMedia     []string
	TAuto              float64
	TReview            float64
}

// Action is the pipeline's action decision.
type Action string

const (
	ActionAutoTag     Action = "auto_tag"
	ActionNeedsReview Action = "needs_review"
	ActionSkip        Action = "skip"
)

// Score computes the 0-100 composite score for a candidate release
// against the local album, per spec.md §4.5's signal table and
// penalties. fp is nil when no fingerprint data exists for this
// release.
func Score(local LocalAlbum, rel musicbrainz.ReleaseStub, fp *FingerprintAggregate, s Settings) float64 {
	var total float64

	total += jaccardScore(local.Artist, rel.ArtistName()) * 15
	total += titleScore(local.Album, rel.Title) * 15
	total += trackCountScore(local.TrackCount, rel.TotalTrackCount())
	total += durationScore(local, rel)
	total += preferredScore(firstOrEmpty(mediaList(rel)), s.PreferredMedia, 2, 6)
	total += preferredScore(rel.Country, s.PreferredCountries, 1.5, 5)
	total += yearScore(local.Year, releaseYear(rel))

	if fp != nil && fp.ReleaseID == rel.ID {
		total += FingerprintBonus(local.TrackCount, *fp)
	}

	total += penalty(local, rel)

	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	return total
}

func jaccardScore(a, b string) float64 {
	return Jaccard(Normalize(a), Normalize(b))
}

func titleScore(localAlbum, mbTitle string) float64 {
	best := jaccardScore(localAlbum, mbTitle)
	if cleaned := CleanAlbum(localAlbum); cleaned != localAlbum {
		if s := jaccardScore(cleaned, mbTitle); s > best {
			best = s
		}
	}
	return best
}

func trackCountScore(local, mb int) float64 {
	diff := abs(local - mb)
	switch {
	case diff == 0:
		return 20
	case diff == 1:
		return 15
	case diff == 2:
		return 10
	case diff <= 4:
		return 5
	default:
		return 0
	}
}

func durationScore(local LocalAlbum, rel musicbrainz.ReleaseStub) float64 {
	if len(local.TrackLengths) == 0 {
		return 0
	}
	var totalDevPct, n float64
	for _, m := range rel.Media {
		for _, tr := range m.Tracks {
			key := [2]int{m.Position, tr.Position}
			if m.Position == 0 {
				key[0] = 1
			}
			localSec, ok := local.TrackLengths[key]
			if !ok {
				key = [2]int{1, tr.Position}
				localSec, ok = local.TrackLengths[key]
			}
			if !ok || tr.Length == 0 {
				continue
			}
			mbSec := float64(tr.Length) / 1000.0
			dev := math.Abs(localSec-mbSec) / mbSec
			totalDevPct += dev
			n++
		}
	}
	if n == 0 {
		return 0
	}
	avgDev := totalDevPct / n
	switch {
	case avgDev <= 0.02:
		return 20
	case avgDev <= 0.05:
		return 16
	case avgDev <= 0.10:
		return 10
	case avgDev <= 0.20:
		return 5
	default:
		return 0
	}
}

func mediaList(rel musicbrainz.ReleaseStub) []string {
	var out []string
	for _, m := range rel.Media {
		out = append(out, m.Format)
	}
	return out
}

// preferredScore implements the shared shape of the "preferred media"
// and "preferred country" signals: index into a priority list, decayed
// by step per position, floored at floorVal; unknown values score 5;
// anything else (known but not preferred) scores 2.
func preferredScore(val string, preferred []string, step, floorVal float64) float64 {
	if val == "" {
		return 5
	}
	for i, p := range preferred {
		if equalFold(p, val) {
			score := 10 - step*float64(i)
			if score < floorVal {
				score = floorVal
			}
			return score
		}
	}
	return 2
}

func firstOrEmpty(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func equalFold(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

func releaseYear(rel musicbrainz.ReleaseStub) int {
	y := yearFromDate(rel.ReleaseGroup.FirstReleaseDate)
	if y == 0 {
		y = yearFromDate(rel.Date)
	}
	return y
}

func yearFromDate(date string) int {
	if len(date) < 4 {
		return 0
	}
	n := 0
	for i := 0; i < 4; i++ {
		c := date[i]
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func yearScore(local, mb int) float64 {
	if mb == 0 {
		return 5
	}
	if local == 0 {
		return 5
	}
	diff := abs(local - mb)
	switch {
	case diff == 0:
		return 10
	case diff <= 1:
		return 8
	case diff <= 3:
		return 5
	default:
		return 2
	}
}

func penalty(local LocalAlbum, rel musicbrainz.ReleaseStub) float64 {
	mbMultiDisc := len(rel.Media) > 1
	mbTotal := rel.TotalTrackCount()
	if local.DiscCount <= 1 && mbMultiDisc && mbTotal > local.TrackCount+5 {
		return -15
	}
	if local.DiscCount > 1 && !mbMultiDisc {
		return -10
	}
	return 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Decide applies the T_auto/T_review thresholds, the manual-mode
// downgrade, and the user-supplied releaseId bypass from spec.md §4.5.
func Decide(score float64, s Settings, manualMode, userInitiated bool, userReleaseID string) Action {
	if userReleaseID != "" {
		return ActionAutoTag
	}

	var action Action
	switch {
	case score >= s.TAuto:
		action = ActionAutoTag
	case score >= s.TReview:
		action = ActionNeedsReview
	default:
		action = ActionSkip
	}

	if manualMode && action == ActionAutoTag && !userInitiated {
		return ActionNeedsReview
	}
	return action
}
