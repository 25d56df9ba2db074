package audio

import (
	"fmt"
	"os"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ReadWAV decodes a PCM WAV file into a mono Signal normalized to [-1, 1].
// Stereo input is mixed down by averaging the channels. Anything the decoder
// cannot handle (non-RIFF container, >2 channels, unknown bit depth) is
// reported as ErrUnsupportedFormat.
func ReadWAV(path string) (Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return Signal{}, fmt.Errorf("audio: opening %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Signal{}, fmt.Errorf("%w: %s is not a PCM WAV file", ErrUnsupportedFormat, path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Signal{}, fmt.Errorf("%w: decoding %s: %v", ErrUnsupportedFormat, path, err)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	if bitDepth <= 0 || bitDepth > 32 {
		return Signal{}, fmt.Errorf("%w: bit depth %d", ErrUnsupportedFormat, bitDepth)
	}
	scale := 1.0 / float64(int64(1)<<(uint(bitDepth)-1))

	channels := buf.Format.NumChannels
	switch channels {
	case 1:
		samples := make([]float64, len(buf.Data))
		for i, v := range buf.Data {
			samples[i] = float64(v) * scale
		}
		return Signal{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
	case 2:
		frames := len(buf.Data) / 2
		samples := make([]float64, frames)
		for i := 0; i < frames; i++ {
			l := float64(buf.Data[2*i]) * scale
			r := float64(buf.Data[2*i+1]) * scale
			samples[i] = (l + r) * 0.5
		}
		return Signal{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
	default:
		return Signal{}, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, channels)
	}
}

// WriteWAV encodes s as a 16-bit mono PCM WAV file. Samples outside [-1, 1]
// are clipped.
func WriteWAV(path string, s Signal) error {
	if len(s.Samples) == 0 || s.SampleRate <= 0 {
		return ErrEmptySignal
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: creating %s: %w", path, err)
	}
	defer f.Close()

	data := make([]int, len(s.Samples))
	for i, v := range s.Samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(v * 32767)
	}

	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: s.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}

	enc := wav.NewEncoder(f, s.SampleRate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("audio: encoding %s: %w", path, err)
	}
	return enc.Close()
}
