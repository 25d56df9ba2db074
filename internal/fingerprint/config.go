package fingerprint

import "fmt"

// Bit layout of a packed hash: anchor frequency bin, target frequency bin,
// and the frame delta between them. 9+9+14 = 32 bits.
const (
	freqBits  = 9
	deltaBits = 14
)

// Config holds every tunable of the fingerprinting pipeline. The zero value
// is not usable; start from DefaultConfig.
type Config struct {
	// WindowSize is the FFT window length in samples. Must be a power of
	// two, and WindowSize/2 must fit in freqBits.
	WindowSize int

	// HopSize is the stride between consecutive windows, in samples.
	HopSize int

	// SampleRate is the rate fingerprinting operates at. Input signals at a
	// different rate are resampled first.
	SampleRate int

	// PeakNeighborhood is the half-width, in both time slices and frequency
	// bins, of the 2-D window used for the local-maximum test and the
	// adaptive threshold.
	PeakNeighborhood int

	// MaxPeaksPerSlice caps how many peaks one time slice may contribute.
	MaxPeaksPerSlice int

	// TargetZoneTime is how many frames ahead of an anchor a target peak
	// may lie. Must fit in deltaBits.
	TargetZoneTime int

	// TargetZoneFreq is the largest |anchor bin - target bin| allowed when
	// pairing peaks.
	TargetZoneFreq int

	// FanOut caps the number of pairs generated per anchor peak.
	FanOut int

	// MinMatchScore is the smallest aligned-offset count the matcher will
	// accept before reporting no match.
	MinMatchScore int
}

// DefaultConfig returns the parameters the catalog is normally built with.
// Index and query sides must use the same values or hashes will not line up.
func DefaultConfig() Config {
	return Config{
		WindowSize:       1024,
		HopSize:          256,
		SampleRate:       11025,
		PeakNeighborhood: 3,
		MaxPeaksPerSlice: 5,
		TargetZoneTime:   60,
		TargetZoneFreq:   192,
		FanOut:           6,
		MinMatchScore:    5,
	}
}

// Validate checks that the configuration is internally consistent and that
// every packed hash field can represent its full range.
func (c Config) Validate() error {
	if c.WindowSize <= 0 || c.WindowSize&(c.WindowSize-1) != 0 {
		return fmt.Errorf("fingerprint: window size %d is not a positive power of two", c.WindowSize)
	}
	if c.HopSize <= 0 || c.HopSize >= c.WindowSize {
		return fmt.Errorf("fingerprint: hop size %d must be in (0, %d)", c.HopSize, c.WindowSize)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("fingerprint: sample rate %d must be positive", c.SampleRate)
	}
	if c.WindowSize/2 > 1<<freqBits {
		return fmt.Errorf("fingerprint: %d frequency bins exceed %d-bit hash field", c.WindowSize/2, freqBits)
	}
	if c.PeakNeighborhood < 1 {
		return fmt.Errorf("fingerprint: peak neighborhood %d must be at least 1", c.PeakNeighborhood)
	}
	if c.MaxPeaksPerSlice < 1 {
		return fmt.Errorf("fingerprint: max peaks per slice %d must be at least 1", c.MaxPeaksPerSlice)
	}
	if c.TargetZoneTime < 1 || c.TargetZoneTime >= 1<<deltaBits {
		return fmt.Errorf("fingerprint: target zone time %d must be in [1, %d)", c.TargetZoneTime, 1<<deltaBits)
	}
	if c.TargetZoneFreq < 1 {
		return fmt.Errorf("fingerprint: target zone freq %d must be at least 1", c.TargetZoneFreq)
	}
	if c.FanOut < 1 {
		return fmt.Errorf("fingerprint: fan-out %d must be at least 1", c.FanOut)
	}
	if c.MinMatchScore < 1 {
		return fmt.Errorf("fingerprint: min match score %d must be at least 1", c.MinMatchScore)
	}
	return nil
}

// FrameDuration is the time covered by one hop, in seconds.
func (c Config) FrameDuration() float64 {
	return float64(c.HopSize) / float64(c.SampleRate)
}
