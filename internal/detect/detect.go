// Package detect turns a word-timestamped transcript into the time intervals
// that must be censored.
package detect

import (
	"github.com/countercurse/countercurse/internal/lexicon"
	"github.com/countercurse/countercurse/internal/transcribe"
)

// Interval is a span of audio, in seconds, flagged for replacement.
// Word is the transcript text that triggered it, kept for diagnostics.
type Interval struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Word  string  `json:"word"`
}

// Duration returns End - Start.
func (i Interval) Duration() float64 {
	return i.End - i.Start
}

// Detect emits one Interval per transcript word whose normalized form is in
// the tier's word set. Intervals come out in transcript order; overlapping
// or adjacent intervals are neither merged nor deduplicated. Segments without
// word-level detail contribute nothing.
//
// Timing defects are corrected rather than reported: reversed bounds are
// swapped and negative times are clamped to zero.
func Detect(t transcribe.Transcript, lex *lexicon.Lexicon, tier lexicon.Tier) []Interval {
	var out []Interval
	for _, w := range Words(t) {
		if !lex.Contains(tier, w.Text) {
			continue
		}
		out = append(out, sanitize(Interval{Start: w.Start, End: w.End, Word: w.Text}))
	}
	return out
}

// Words flattens a transcript into its word sequence.
func Words(t transcribe.Transcript) []transcribe.Word {
	words := make([]transcribe.Word, 0, t.WordCount())
	for _, seg := range t.Segments {
		words = append(words, seg.Words...)
	}
	return words
}

func sanitize(i Interval) Interval {
	if i.Start > i.End {
		i.Start, i.End = i.End, i.Start
	}
	if i.Start < 0 {
		i.Start = 0
	}
	if i.End < 0 {
		i.End = 0
	}
	return i
}
