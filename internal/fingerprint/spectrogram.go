package fingerprint

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/window"
)

// hammingCoeffs returns the Hamming window coefficients for length n.
func hammingCoeffs(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return window.Hamming(w)
}

// Spectrogram computes the time-major magnitude spectrogram of samples.
// Windows of cfg.WindowSize slide by cfg.HopSize; the trailing partial
// window is zero-padded rather than dropped, so the frame count is always
// ceil(len(samples)/HopSize). A signal shorter than one window still yields
// at least one (padded) frame. Each frame holds WindowSize/2 magnitude bins
// covering the positive frequencies.
func Spectrogram(samples []float64, cfg Config) [][]float64 {
	if len(samples) == 0 {
		return nil
	}

	numFrames := (len(samples) + cfg.HopSize - 1) / cfg.HopSize
	numBins := cfg.WindowSize / 2
	coeffs := hammingCoeffs(cfg.WindowSize)

	spec := make([][]float64, numFrames)
	frame := make([]float64, cfg.WindowSize)
	for i := 0; i < numFrames; i++ {
		start := i * cfg.HopSize
		for k := 0; k < cfg.WindowSize; k++ {
			if start+k < len(samples) {
				frame[k] = samples[start+k] * coeffs[k]
			} else {
				frame[k] = 0
			}
		}
		spectrum := fft.FFTReal(frame)
		mags := make([]float64, numBins)
		for b := 0; b < numBins; b++ {
			mags[b] = cmplx.Abs(spectrum[b])
		}
		spec[i] = mags
	}
	return spec
}
