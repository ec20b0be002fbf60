package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// pcmFormat is the WAVE format tag for integer PCM.
const pcmFormat = 1

// Static errors for WAV decoding.
var (
	ErrInvalidWAV     = errors.New("audio: not a valid WAV file")
	ErrUnsupportedWAV = errors.New("audio: unsupported WAV encoding")
)

// ReadWAV decodes an integer PCM WAV stream.
func ReadWAV(r io.ReadSeeker) (Waveform, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil {
			return Waveform{}, fmt.Errorf("%w: %w", ErrInvalidWAV, err)
		}
		return Waveform{}, ErrInvalidWAV
	}
	if dec.WavAudioFormat != pcmFormat {
		return Waveform{}, fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("audio: read PCM buffer: %w", err)
	}

	return Waveform{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		Samples:    buf.Data,
	}, nil
}

// ReadWAVFile opens path and decodes it with ReadWAV.
func ReadWAVFile(path string) (Waveform, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from the pipeline workspace
	if err != nil {
		return Waveform{}, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w, err := ReadWAV(f)
	if err != nil {
		return Waveform{}, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	return w, nil
}

// WriteWAV encodes w as integer PCM WAV. The encoder seeks back to patch
// the header sizes, hence the io.WriteSeeker.
func WriteWAV(ws io.WriteSeeker, w Waveform) error {
	if w.SampleRate <= 0 || w.Channels <= 0 {
		return fmt.Errorf("%w: sample rate %d, channels %d", ErrUnsupportedWAV, w.SampleRate, w.Channels)
	}
	bitDepth := w.BitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}

	enc := wav.NewEncoder(ws, w.SampleRate, bitDepth, w.Channels, pcmFormat)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: w.Channels,
			SampleRate:  w.SampleRate,
		},
		Data:           w.Samples,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("audio: encode WAV: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("audio: finalize WAV: %w", err)
	}
	return nil
}

// WriteWAVFile writes w to path, replacing any existing file.
func WriteWAVFile(path string, w Waveform) error {
	f, err := os.Create(path) // #nosec G304 - path comes from the pipeline workspace
	if err != nil {
		return fmt.Errorf("audio: create %s: %w", path, err)
	}
	if err := WriteWAV(f, w); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("audio: close %s: %w", path, err)
	}
	return nil
}
