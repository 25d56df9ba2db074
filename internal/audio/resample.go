package audio

import (
	"fmt"
	"math"
)

// lowPassFilter applies a one-pole RC filter with the given cutoff so that
// energy above the new Nyquist frequency does not alias into the decimated
// signal.
func lowPassFilter(samples []float64, sampleRate int, cutoff float64) []float64 {
	rc := 1.0 / (2 * math.Pi * cutoff)
	dt := 1.0 / float64(sampleRate)
	alpha := dt / (rc + dt)

	out := make([]float64, len(samples))
	var prev float64
	for i, v := range samples {
		if i == 0 {
			out[i] = v * alpha
		} else {
			out[i] = alpha*v + (1-alpha)*prev
		}
		prev = out[i]
	}
	return out
}

// Resample converts s to the target rate. Integer downsampling ratios use
// block averaging after a low-pass prefilter; other ratios fall back to
// linear interpolation. Both paths are fully deterministic, so repeated runs
// on the same input produce identical samples.
func Resample(s Signal, targetRate int) (Signal, error) {
	if targetRate <= 0 {
		return Signal{}, fmt.Errorf("audio: invalid target rate %d", targetRate)
	}
	if s.SampleRate == targetRate {
		return s, nil
	}
	if len(s.Samples) == 0 {
		return Signal{SampleRate: targetRate}, nil
	}

	src := s.Samples
	if targetRate < s.SampleRate {
		// cutoff a little below the new Nyquist
		src = lowPassFilter(src, s.SampleRate, float64(targetRate)*0.45)
	}

	if targetRate < s.SampleRate && s.SampleRate%targetRate == 0 {
		ratio := s.SampleRate / targetRate
		out := make([]float64, 0, len(src)/ratio+1)
		for i := 0; i < len(src); i += ratio {
			end := i + ratio
			if end > len(src) {
				end = len(src)
			}
			sum := 0.0
			for j := i; j < end; j++ {
				sum += src[j]
			}
			out = append(out, sum/float64(end-i))
		}
		return Signal{Samples: out, SampleRate: targetRate}, nil
	}

	// Linear interpolation for non-integer ratios (and upsampling).
	n := int(float64(len(src)) * float64(targetRate) / float64(s.SampleRate))
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	step := float64(s.SampleRate) / float64(targetRate)
	for i := range out {
		pos := float64(i) * step
		lo := int(pos)
		if lo >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}
		frac := pos - float64(lo)
		out[i] = src[lo]*(1-frac) + src[lo+1]*frac
	}
	return Signal{Samples: out, SampleRate: targetRate}, nil
}
