// Package fingerprint converts audio signals into compact, deterministic
// spectral fingerprints: spectrogram, constellation peaks, then packed
// peak-pair hashes. The whole pipeline is pure computation over an immutable
// input and safe to run concurrently for independent signals.
package fingerprint

import (
	"context"
	"errors"

	"github.com/Awwal-10/media-recognition/internal/audio"
)

// ErrNoPeaksDetected means a valid signal produced no usable constellation
// points, typically near-silence or pure low-energy noise.
var ErrNoPeaksDetected = errors.New("fingerprint: no peaks detected")

// Generate runs the full pipeline on sig: validation, resampling to
// cfg.SampleRate, spectrogram, peak extraction and hashing. The context is
// checked between stages; the stages themselves are not interruptible.
// Fingerprinting the same signal always yields the same hash sequence.
func Generate(ctx context.Context, sig audio.Signal, cfg Config) ([]Hash, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if sig.SampleRate != cfg.SampleRate {
		resampled, err := audio.Resample(sig, cfg.SampleRate)
		if err != nil {
			return nil, err
		}
		sig = resampled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	spec := Spectrogram(sig.Samples, cfg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	peaks := ExtractPeaks(spec, cfg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hashes := HashPeaks(peaks, cfg)
	if len(hashes) == 0 {
		return nil, ErrNoPeaksDetected
	}
	return hashes, nil
}
