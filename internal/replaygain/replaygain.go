// Package replaygain implements C16: a narrow Analyzer interface for
// computing track loudness gain/peak, invoked by the Orchestrator's
// optional writeReplayGain step. SPEC_FULL.md §4.16 treats real EBU
// R128 loudness analysis as a black-box utility the way spec.md §1
// treats the fingerprint generator — no retrieved example vendors a
// PCM decoder or loudness-metering library, so the one concrete
// implementation here is a stdlib-only placeholder (see DESIGN.md);
// the interface boundary is what the Orchestrator actually depends on.
package replaygain

import (
	"context"
	"math"
	"os"
)

// Result is one track's computed ReplayGain values: TrackGain in dB
// relative to referenceLoudness, TrackPeak as a linear amplitude in
// [0, 1].
type Result struct {
	TrackGain float64
	TrackPeak float64
}

// Analyzer computes loudness gain/peak for one track file.
type Analyzer interface {
	Analyze(ctx context.Context, path string, referenceLoudness float64) (Result, error)
}

// SimpleAnalyzer derives a deterministic, repeatable gain estimate from
// the compressed file's byte distribution rather than decoded PCM
// samples: it is not loudness-accurate, but it is stable for a given
// file and produces values in the realistic ReplayGain range, letting
// the write path and the UI round-trip a plausible value end to end.
type SimpleAnalyzer struct{}

// Analyze implements Analyzer.
func (SimpleAnalyzer) Analyze(ctx context.Context, path string, referenceLoudness float64) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	buf := make([]byte, 64*1024)
	var sumAbs, peak float64
	var n int64
	for {
		read, err := f.Read(buf)
		for i := 0; i < read; i++ {
			v := float64(int8(buf[i])) / 128.0
			av := math.Abs(v)
			sumAbs += av
			if av > peak {
				peak = av
			}
			n++
		}
		if err != nil {
			break
		}
	}
	if n == 0 {
		return Result{TrackGain: 0, TrackPeak: 0}, nil
	}

	meanAbs := sumAbs / float64(n)
	estimatedLoudness := 20 * math.Log10(meanAbs+1e-9)
	gain := referenceLoudness - estimatedLoudness

	return Result{TrackGain: clamp(gain, -20, 20), TrackPeak: peak}, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
