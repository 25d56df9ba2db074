package fingerprint

import (
	"math"
	"sort"
)

// Peak is one constellation point: a spectral magnitude that dominates its
// 2-D neighborhood.
type Peak struct {
	TimeIdx int
	FreqIdx int
	MagDB   float64
}

const (
	// floor to avoid log(0)
	magEps = 1e-12

	// minimum dB above the local neighborhood mean to accept a peak. The
	// threshold tracks local energy, so quiet passages still produce peaks
	// and loud passages do not flood the constellation.
	peakDeltaDB = 6.0
)

// ExtractPeaks selects the constellation map from a magnitude spectrogram.
// A bin qualifies when it is the strict maximum of its neighborhood
// (±PeakNeighborhood slices, ±PeakNeighborhood bins) and exceeds the
// neighborhood's mean level by peakDeltaDB. At most MaxPeaksPerSlice peaks
// survive per time slice, keeping the strongest; magnitude ties keep the
// lower frequency bin. The result is sorted by (time, frequency) and an
// empty result is valid output, not an error.
func ExtractPeaks(spec [][]float64, cfg Config) []Peak {
	if len(spec) == 0 || len(spec[0]) == 0 {
		return nil
	}

	nFrames := len(spec)
	nBins := len(spec[0])
	n := cfg.PeakNeighborhood

	// dB grid once, instead of per neighborhood visit
	db := make([][]float64, nFrames)
	for t := range spec {
		row := make([]float64, nBins)
		for f, m := range spec[t] {
			row[f] = 20 * math.Log10(m+magEps)
		}
		db[t] = row
	}

	peaks := make([]Peak, 0, nFrames*2)
	for t := 0; t < nFrames; t++ {
		var slice []Peak

		// skip edge bins: bin 0 carries DC, the top bin has no upper neighbor
		for f := 1; f < nBins-1; f++ {
			v := db[t][f]

			localMax := true
			sum := 0.0
			count := 0
			for dt := -n; dt <= n && localMax; dt++ {
				tt := t + dt
				if tt < 0 || tt >= nFrames {
					continue
				}
				row := db[tt]
				for df := -n; df <= n; df++ {
					ff := f + df
					if ff < 0 || ff >= nBins {
						continue
					}
					if dt == 0 && df == 0 {
						continue
					}
					if row[ff] > v {
						localMax = false
						break
					}
					sum += row[ff]
					count++
				}
			}
			if !localMax || count == 0 {
				continue
			}
			if v < sum/float64(count)+peakDeltaDB {
				continue
			}
			slice = append(slice, Peak{TimeIdx: t, FreqIdx: f, MagDB: v})
		}

		if len(slice) > cfg.MaxPeaksPerSlice {
			sort.Slice(slice, func(i, j int) bool {
				if slice[i].MagDB != slice[j].MagDB {
					return slice[i].MagDB > slice[j].MagDB
				}
				return slice[i].FreqIdx < slice[j].FreqIdx
			})
			slice = slice[:cfg.MaxPeaksPerSlice]
			sort.Slice(slice, func(i, j int) bool { return slice[i].FreqIdx < slice[j].FreqIdx })
		}
		peaks = append(peaks, slice...)
	}
	return peaks
}
