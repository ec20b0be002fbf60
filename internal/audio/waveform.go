// Package audio holds the in-memory PCM representation used by the splicer,
// its WAV codec, and the masking signals that replace censored speech.
package audio

// Waveform is interleaved integer PCM at a fixed sample rate. A frame is one
// sample per channel; positions are addressed in milliseconds and mapped to
// frames with floor rounding.
type Waveform struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Samples    []int
}

// Frames returns the number of frames held by w.
func (w Waveform) Frames() int {
	if w.Channels <= 0 {
		return 0
	}
	return len(w.Samples) / w.Channels
}

// DurationMs returns the length of w in whole milliseconds.
func (w Waveform) DurationMs() int {
	if w.SampleRate <= 0 {
		return 0
	}
	return int(int64(w.Frames()) * 1000 / int64(w.SampleRate))
}

// FrameAt returns the index of the frame at ms. It is not clamped.
func (w Waveform) FrameAt(ms int) int {
	return msToFrames(ms, w.SampleRate)
}

// Clone returns a deep copy of w.
func (w Waveform) Clone() Waveform {
	c := w
	if w.Samples != nil {
		c.Samples = make([]int, len(w.Samples))
		copy(c.Samples, w.Samples)
	}
	return c
}

// MaxAmplitude is the largest positive sample value at w's bit depth.
func (w Waveform) MaxAmplitude() int {
	return maxAmplitude(w.BitDepth)
}

// Equal reports whether a and b carry the same format and samples.
func Equal(a, b Waveform) bool {
	if a.SampleRate != b.SampleRate || a.Channels != b.Channels || a.BitDepth != b.BitDepth {
		return false
	}
	if len(a.Samples) != len(b.Samples) {
		return false
	}
	for i := range a.Samples {
		if a.Samples[i] != b.Samples[i] {
			return false
		}
	}
	return true
}

func msToFrames(ms, sampleRate int) int {
	return int(int64(ms) * int64(sampleRate) / 1000)
}

func maxAmplitude(bitDepth int) int {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return 1<<(bitDepth-1) - 1
}

// Rescale converts a sample from one bit depth to another.
func Rescale(sample, fromDepth, toDepth int) int {
	if fromDepth == toDepth {
		return sample
	}
	return int(int64(sample) * int64(maxAmplitude(toDepth)) / int64(maxAmplitude(fromDepth)))
}
