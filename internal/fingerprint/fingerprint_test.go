package fingerprint

import "testing"

func TestSelectSampleTracksSkipsShort(t *testing.T) {
	paths := []string{"a", "b", "c"}
	durations := []float64{10, 40, 50}
	got := SelectSampleTracks(paths, durations)
	if len(got) != 2 {
		t.Fatalf("expected 2 eligible tracks, got %d: %v", len(got), got)
	}
	for _, p := range got {
		if p == "a" {
			t.Errorf("track 'a' (10s) should have been skipped as < 30s")
		}
	}
}

func TestSelectSampleTracksCapsAtFive(t *testing.T) {
	paths := make([]string, 12)
	durations := make([]float64, 12)
	for i := range paths {
		paths[i] = string(rune('a' + i))
		durations[i] = 60
	}
	got := SelectSampleTracks(paths, durations)
	if len(got) != 5 {
		t.Fatalf("expected 5 sampled tracks, got %d", len(got))
	}
}

func TestAggregateByReleaseVotesOncePerTrack(t *testing.T) {
	perTrack := [][]AcoustIDMatch{
		{{ReleaseID: "r1", Confidence: 0.9}, {ReleaseID: "r1", Confidence: 0.8}},
		{{ReleaseID: "r1", Confidence: 0.95}},
	}
	agg := AggregateByRelease(perTrack)
	if len(agg) != 1 {
		t.Fatalf("expected 1 release, got %d", len(agg))
	}
	if agg[0].MatchedTracks != 2 {
		t.Errorf("expected 2 matched tracks (one vote per track), got %d", agg[0].MatchedTracks)
	}
}

func TestAggregateByReleaseSortsDescending(t *testing.T) {
	perTrack := [][]AcoustIDMatch{
		{{ReleaseID: "low", Confidence: 0.5}},
		{{ReleaseID: "high", Confidence: 0.9}},
		{{ReleaseID: "high", Confidence: 0.9}},
	}
	agg := AggregateByRelease(perTrack)
	if agg[0].ReleaseID != "high" {
		t.Errorf("expected 'high' first, got %s", agg[0].ReleaseID)
	}
}

func TestAggregateByReleaseCapsAtTen(t *testing.T) {
	var perTrack [][]AcoustIDMatch
	for i := 0; i < 15; i++ {
		perTrack = append(perTrack, []AcoustIDMatch{{ReleaseID: string(rune('a' + i)), Confidence: 0.5}})
	}
	agg := AggregateByRelease(perTrack)
	if len(agg) != 10 {
		t.Fatalf("expected top 10, got %d", len(agg))
	}
}
