package audio

import (
	"errors"
	"time"
)

var (
	// ErrEmptySignal means the signal has no usable samples (zero length or
	// fully silent).
	ErrEmptySignal = errors.New("audio: empty signal")

	// ErrUnsupportedFormat means the audio could not be decoded. Decoding
	// from compressed formats is a collaborator's job; this package only
	// detects what it cannot handle.
	ErrUnsupportedFormat = errors.New("audio: unsupported format")
)

// Signal is a mono audio clip: normalized samples in [-1, 1] plus the rate
// they were sampled at. It is treated as immutable once constructed.
type Signal struct {
	Samples    []float64
	SampleRate int
}

// Validate rejects signals that cannot be fingerprinted: no samples, a
// non-positive sample rate, or pure digital silence.
func (s Signal) Validate() error {
	if len(s.Samples) == 0 || s.SampleRate <= 0 {
		return ErrEmptySignal
	}
	for _, v := range s.Samples {
		if v != 0 {
			return nil
		}
	}
	return ErrEmptySignal
}

// Duration reports the clip length.
func (s Signal) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	secs := float64(len(s.Samples)) / float64(s.SampleRate)
	return time.Duration(secs * float64(time.Second))
}

// Slice returns the sub-clip [start, end) in samples. Bounds are clamped.
func (s Signal) Slice(start, end int) Signal {
	if start < 0 {
		start = 0
	}
	if end > len(s.Samples) {
		end = len(s.Samples)
	}
	if start >= end {
		return Signal{SampleRate: s.SampleRate}
	}
	return Signal{Samples: s.Samples[start:end], SampleRate: s.SampleRate}
}
