package fingerprint

// Hash pairs a packed peak-pair identifier with the time slice of its anchor
// peak. Only the frame delta between the two peaks enters Value, never an
// absolute time, so shifting a signal shifts AnchorIdx and nothing else.
type Hash struct {
	Value     uint32
	AnchorIdx int
}

// pack combines an anchor bin, target bin and frame delta into one 32-bit
// identifier: [anchor:9][target:9][delta:14]. ok is false when a field does
// not fit its bit width.
func pack(anchorFreq, targetFreq, delta int) (uint32, bool) {
	const (
		freqMask  = 1<<freqBits - 1
		deltaMask = 1<<deltaBits - 1
	)
	if anchorFreq < 0 || anchorFreq > freqMask {
		return 0, false
	}
	if targetFreq < 0 || targetFreq > freqMask {
		return 0, false
	}
	if delta < 1 || delta > deltaMask {
		return 0, false
	}
	return uint32(anchorFreq)<<(freqBits+deltaBits) |
		uint32(targetFreq)<<deltaBits |
		uint32(delta), true
}

// HashPeaks turns a time-ordered constellation into fingerprint hashes.
// Each peak acts as an anchor and is paired with later peaks inside its
// target zone: at most cfg.TargetZoneTime frames ahead and within
// cfg.TargetZoneFreq bins vertically, capped at cfg.FanOut pairs per anchor
// so dense constellations stay bounded.
func HashPeaks(peaks []Peak, cfg Config) []Hash {
	hashes := make([]Hash, 0, len(peaks)*cfg.FanOut/2)
	for i, anchor := range peaks {
		paired := 0
		for j := i + 1; j < len(peaks) && paired < cfg.FanOut; j++ {
			target := peaks[j]
			delta := target.TimeIdx - anchor.TimeIdx
			if delta > cfg.TargetZoneTime {
				break
			}
			if delta < 1 {
				continue
			}
			df := target.FreqIdx - anchor.FreqIdx
			if df < 0 {
				df = -df
			}
			if df > cfg.TargetZoneFreq {
				continue
			}
			v, ok := pack(anchor.FreqIdx, target.FreqIdx, delta)
			if !ok {
				continue
			}
			hashes = append(hashes, Hash{Value: v, AnchorIdx: anchor.TimeIdx})
			paired++
		}
	}
	return hashes
}
