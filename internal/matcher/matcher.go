// Package matcher identifies short clips against the fingerprint index using
// offset-alignment voting: every hash shared between the query and a catalog
// track votes for the time offset that would align them, and a genuine match
// shows up as one offset collecting far more votes than any other.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Awwal-10/media-recognition/internal/audio"
	"github.com/Awwal-10/media-recognition/internal/fingerprint"
	"github.com/Awwal-10/media-recognition/internal/index"
)

// ErrNoMatchFound means no catalog track aligned with the query above the
// configured minimum score.
var ErrNoMatchFound = errors.New("matcher: no match found")

// Match is one identification result. BestOffset is the frame index in the
// matched track where the query begins; OffsetSeconds is the same position in
// seconds.
type Match struct {
	TrackID       string
	Track         index.Track
	BestOffset    int
	OffsetSeconds float64
	Score         int
	Overlap       int
	Confidence    float64
	QueryHashes   int
}

// Matcher resolves query fingerprints against an index. It holds no mutable
// state and is safe for concurrent use.
type Matcher struct {
	idx index.Index
	cfg fingerprint.Config
}

func New(idx index.Index, cfg fingerprint.Config) *Matcher {
	return &Matcher{idx: idx, cfg: cfg}
}

// Identify fingerprints sig and returns candidate matches ordered best first.
// It fails with ErrNoMatchFound when no track reaches cfg.MinMatchScore, and
// passes through fingerprinting errors (ErrEmptySignal, ErrNoPeaksDetected)
// unchanged.
func (m *Matcher) Identify(ctx context.Context, sig audio.Signal) ([]Match, error) {
	hashes, err := fingerprint.Generate(ctx, sig, m.cfg)
	if err != nil {
		return nil, err
	}

	// All query anchors per hash value; repeated values vote once per
	// (query anchor, posting) pair.
	queryAnchors := make(map[uint32][]int, len(hashes))
	for _, h := range hashes {
		queryAnchors[h.Value] = append(queryAnchors[h.Value], h.AnchorIdx)
	}
	unique := make([]uint32, 0, len(queryAnchors))
	for v := range queryAnchors {
		unique = append(unique, v)
	}

	postings, err := m.idx.LookupAll(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("matcher: index lookup: %w", err)
	}

	candidates := scoreCandidates(queryAnchors, postings, m.cfg.MinMatchScore)
	if len(candidates) == 0 {
		return nil, ErrNoMatchFound
	}

	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		track, err := m.idx.Track(ctx, c.trackID)
		if err != nil {
			return nil, fmt.Errorf("matcher: resolving track %s: %w", c.trackID, err)
		}
		matches = append(matches, Match{
			TrackID:       c.trackID,
			Track:         *track,
			BestOffset:    c.bestOffset,
			OffsetSeconds: float64(c.bestOffset) * m.cfg.FrameDuration(),
			Score:         c.score,
			Overlap:       c.overlap,
			Confidence:    float64(c.score) / float64(len(hashes)),
			QueryHashes:   len(hashes),
		})
	}
	return matches, nil
}

// candidate is one track's vote tally before catalog metadata is attached.
type candidate struct {
	trackID    string
	bestOffset int
	score      int
	overlap    int
}

// scoreCandidates builds the per-track offset histograms and keeps every
// track whose tallest histogram bin reaches minScore. The offset voted for is
// indexedAnchor - queryAnchor: the frame in the catalog track where the query
// would have to start for the two anchors to coincide. Results are ordered by
// score, then overlap, then track id, all descending quality.
func scoreCandidates(queryAnchors map[uint32][]int, postings map[uint32][]index.Posting, minScore int) []candidate {
	votes := make(map[string]map[int]int)
	overlap := make(map[string]int)

	for hash, found := range postings {
		anchors := queryAnchors[hash]
		for _, p := range found {
			overlap[p.TrackID]++
			hist := votes[p.TrackID]
			if hist == nil {
				hist = make(map[int]int)
				votes[p.TrackID] = hist
			}
			for _, qa := range anchors {
				hist[p.AnchorIdx-qa]++
			}
		}
	}

	var out []candidate
	for trackID, hist := range votes {
		best, bestCount := 0, 0
		for offset, count := range hist {
			if count > bestCount || (count == bestCount && offset < best) {
				best, bestCount = offset, count
			}
		}
		if bestCount < minScore {
			continue
		}
		out = append(out, candidate{
			trackID:    trackID,
			bestOffset: best,
			score:      bestCount,
			overlap:    overlap[trackID],
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].overlap != out[j].overlap {
			return out[i].overlap > out[j].overlap
		}
		return out[i].trackID < out[j].trackID
	})
	return out
}
