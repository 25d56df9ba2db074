// Package index persists the hash → postings mapping and the track catalog.
// Ingestion is append-only: a track and its postings commit as one unit and
// are immutable afterwards.
package index

import (
	"context"
	"errors"
	"sort"

	"github.com/Awwal-10/media-recognition/internal/fingerprint"
)

var (
	// ErrDuplicateTrack means the track id (or identical catalog metadata)
	// is already registered. Re-ingestion always fails; it never appends a
	// second set of postings.
	ErrDuplicateTrack = errors.New("index: duplicate track")

	// ErrTrackNotFound means no track with the given id exists.
	ErrTrackNotFound = errors.New("index: track not found")

	// ErrIndexWriteFailure wraps storage errors during ingestion. The
	// transaction is rolled back and the caller may retry.
	ErrIndexWriteFailure = errors.New("index: write failure")
)

// Kind distinguishes the two catalog media types.
type Kind string

const (
	KindMovie   Kind = "movie"
	KindEpisode Kind = "episode"
)

// Track is one catalog entry. Season and Episode are zero for movies.
type Track struct {
	ID         string
	Title      string
	Kind       Kind
	Season     int
	Episode    int
	DurationMs int
}

// Posting records that a track produced a given hash at a given anchor time
// slice. Many tracks and many anchors may share one hash value; that is how
// the constellation scheme absorbs collisions.
type Posting struct {
	TrackID   string
	AnchorIdx int
}

// Stats summarizes the catalog.
type Stats struct {
	Tracks   int
	Movies   int
	Episodes int
	Postings int64
}

// Index is the persistent fingerprint store. Implementations must make
// Ingest atomic per track (a track is never visible without its postings,
// nor postings without their track) and lookups read-committed: a lookup
// started after an ingest commits sees its postings. Lookups may run
// concurrently with each other and with ingestion of other tracks.
type Index interface {
	// Ingest registers track and appends one posting per hash. It fails
	// with ErrDuplicateTrack if the track is already present and with a
	// wrapped ErrIndexWriteFailure when the transaction cannot complete.
	Ingest(ctx context.Context, track Track, hashes []fingerprint.Hash) error

	// Lookup returns the postings recorded for hash, in insertion order per
	// track. Unknown hashes return an empty slice, not an error.
	Lookup(ctx context.Context, hash uint32) ([]Posting, error)

	// LookupAll batches Lookup over many hashes; absent hashes are simply
	// missing from the result map.
	LookupAll(ctx context.Context, hashes []uint32) (map[uint32][]Posting, error)

	// Track fetches catalog metadata by id.
	Track(ctx context.Context, id string) (*Track, error)

	// Tracks lists the whole catalog.
	Tracks(ctx context.Context) ([]Track, error)

	// Stats reports catalog counters.
	Stats(ctx context.Context) (Stats, error)

	Close() error
}

// sortTracks orders a catalog listing by kind, title, season, episode.
func sortTracks(tracks []Track) {
	sort.Slice(tracks, func(i, j int) bool {
		a, b := tracks[i], tracks[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		if a.Season != b.Season {
			return a.Season < b.Season
		}
		return a.Episode < b.Episode
	})
}
