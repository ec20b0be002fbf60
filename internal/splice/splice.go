// Package splice overwrites offense intervals of a waveform with a masking
// signal while keeping every other sample, and the overall length, intact.
package splice

import (
	"fmt"
	"math"
	"sort"

	"github.com/countercurse/countercurse/internal/audio"
	"github.com/countercurse/countercurse/internal/detect"
)

// BoundaryWarning reports an interval that reached past the end of the
// waveform and was clamped. It is informational and never fails a splice.
type BoundaryWarning struct {
	Interval   detect.Interval
	WaveformMs int
}

func (w BoundaryWarning) String() string {
	return fmt.Sprintf("interval %.3fs-%.3fs (%q) clamped to waveform end at %dms",
		w.Interval.Start, w.Interval.End, w.Interval.Word, w.WaveformMs)
}

// Order returns a copy of intervals sorted by descending Start, ties broken
// by descending End. The sort is stable and the input is left untouched.
func Order(intervals []detect.Interval) []detect.Interval {
	out := make([]detect.Interval, len(intervals))
	copy(out, intervals)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[i].Start > out[j].Start
		}
		return out[i].End > out[j].End
	})
	return out
}

// Censor returns a copy of w in which the span of every interval is replaced
// by the masker's signal. Spans are addressed in milliseconds, rounded from
// the interval's seconds, and processed highest start first so no splice
// moves a span still waiting to be processed. Overlapping intervals simply
// overwrite each other and their union ends up masked.
//
// Reversed bounds are swapped and negative times clamped to zero. Zero-length
// intervals are no-ops and an empty list returns w itself. Intervals past the
// end of w are clamped and reported as warnings.
func Censor(w audio.Waveform, intervals []detect.Interval, m audio.Masker) (audio.Waveform, []BoundaryWarning) {
	if len(intervals) == 0 {
		return w, nil
	}

	out := w.Clone()
	frames := out.Frames()
	durationMs := out.DurationMs()
	limit := float64(durationMs) / 1000

	var warnings []BoundaryWarning
	for _, iv := range Order(normalize(intervals)) {
		start, end := iv.Start, iv.End
		if end > limit {
			warnings = append(warnings, BoundaryWarning{Interval: iv, WaveformMs: durationMs})
			end = limit
		}
		if start >= end {
			continue
		}
		startMs := audio.DurationMs(start)
		endMs := audio.DurationMs(end)
		if endMs <= startMs {
			continue
		}

		startFrame := out.FrameAt(startMs)
		endFrame := out.FrameAt(endMs)
		if endMs == durationMs {
			endFrame = frames
		}
		if startFrame >= endFrame {
			continue
		}

		mask := m.Mask(slotSeconds(endFrame-startFrame, out.SampleRate), out.SampleRate)
		overwrite(out, startFrame, endFrame, mask)
	}
	return out, warnings
}

// normalize swaps reversed bounds and clamps negative or NaN times to zero.
func normalize(intervals []detect.Interval) []detect.Interval {
	out := make([]detect.Interval, len(intervals))
	for i, iv := range intervals {
		iv.Start = nonNegative(iv.Start)
		iv.End = nonNegative(iv.End)
		if iv.End < iv.Start {
			iv.Start, iv.End = iv.End, iv.Start
		}
		out[i] = iv
	}
	return out
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

// slotSeconds returns the shortest whole-millisecond duration whose mask
// covers n frames at sampleRate.
func slotSeconds(n, sampleRate int) float64 {
	ms := (int64(n)*1000 + int64(sampleRate) - 1) / int64(sampleRate)
	return float64(ms) / 1000
}

// overwrite writes mask into frames [from, to) of w, broadcasting its first
// channel to every channel of w. A mask shorter than the slot is padded with
// silence and a longer one is truncated.
func overwrite(w audio.Waveform, from, to int, mask audio.Waveform) {
	maskFrames := mask.Frames()
	for f := 0; f < to-from; f++ {
		v := 0
		if f < maskFrames {
			v = audio.Rescale(mask.Samples[f*mask.Channels], mask.BitDepth, w.BitDepth)
		}
		base := (from + f) * w.Channels
		for c := 0; c < w.Channels; c++ {
			w.Samples[base+c] = v
		}
	}
}
