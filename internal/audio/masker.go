package audio

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	// DefaultToneFrequency is the reference bleep frequency in Hz.
	DefaultToneFrequency = 1000.0
	// DefaultToneAmplitude is the tone level relative to full scale.
	DefaultToneAmplitude = 0.5

	maskBitDepth = 16
)

// Masker kinds accepted by NewMasker.
const (
	MaskTone    = "tone"
	MaskSilence = "silence"
)

// ErrUnknownMask is returned by NewMasker for an unrecognised kind.
var ErrUnknownMask = errors.New("audio: unknown mask kind")

// Masker produces the replacement signal for a censored span.
type Masker interface {
	// Mask returns a mono waveform lasting round(duration*1000) ms at
	// sampleRate. A non-positive duration yields an empty waveform.
	Mask(duration float64, sampleRate int) Waveform
}

// NewMasker returns the masker named by kind. freq is only used by the tone
// and defaults to DefaultToneFrequency when not positive.
func NewMasker(kind string, freq float64) (Masker, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", MaskTone:
		if freq <= 0 {
			freq = DefaultToneFrequency
		}
		return SineTone{Frequency: freq, Amplitude: DefaultToneAmplitude}, nil
	case MaskSilence:
		return Silence{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMask, kind)
	}
}

// DurationMs converts seconds to the rounded millisecond length of a mask.
func DurationMs(duration float64) int {
	if duration <= 0 || math.IsNaN(duration) {
		return 0
	}
	return int(math.Round(duration * 1000))
}

// SineTone is a fixed-frequency sine wave. The phase starts at zero so the
// output is a pure function of its inputs.
type SineTone struct {
	Frequency float64
	Amplitude float64
}

// Mask implements Masker.
func (s SineTone) Mask(duration float64, sampleRate int) Waveform {
	w := emptyMask(sampleRate)
	frames := msToFrames(DurationMs(duration), sampleRate)
	if frames <= 0 {
		return w
	}

	peak := s.Amplitude * float64(w.MaxAmplitude())
	step := 2 * math.Pi * s.Frequency / float64(sampleRate)
	w.Samples = make([]int, frames)
	for i := range w.Samples {
		w.Samples[i] = int(math.Round(peak * math.Sin(step*float64(i))))
	}
	return w
}

// Silence replaces censored spans with digital silence.
type Silence struct{}

// Mask implements Masker.
func (Silence) Mask(duration float64, sampleRate int) Waveform {
	w := emptyMask(sampleRate)
	if frames := msToFrames(DurationMs(duration), sampleRate); frames > 0 {
		w.Samples = make([]int, frames)
	}
	return w
}

func emptyMask(sampleRate int) Waveform {
	return Waveform{SampleRate: sampleRate, Channels: 1, BitDepth: maskBitDepth, Samples: []int{}}
}

var (
	_ Masker = SineTone{}
	_ Masker = Silence{}
)
