package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Awwal-10/media-recognition/internal/fingerprint"
)

// backends lists every Index implementation; the shared contract tests run
// against each.
var backends = []struct {
	name string
	open func(t *testing.T) Index
}{
	{
		name: "sqlite",
		open: func(t *testing.T) Index {
			idx, err := OpenSQLite(filepath.Join(t.TempDir(), "test.sqlite3"))
			if err != nil {
				t.Fatalf("opening sqlite index: %v", err)
			}
			return idx
		},
	},
	{
		name: "badger",
		open: func(t *testing.T) Index {
			idx, err := OpenBadger(filepath.Join(t.TempDir(), "badger"))
			if err != nil {
				t.Fatalf("opening badger index: %v", err)
			}
			return idx
		},
	},
}

func testHashes(values ...uint32) []fingerprint.Hash {
	out := make([]fingerprint.Hash, len(values))
	for i, v := range values {
		out[i] = fingerprint.Hash{Value: v, AnchorIdx: i * 10}
	}
	return out
}

func TestIngestLookupRoundtrip(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			idx := be.open(t)
			defer idx.Close()
			ctx := context.Background()

			track := Track{ID: "trk-1", Title: "heat", Kind: KindMovie, DurationMs: 15000}
			if err := idx.Ingest(ctx, track, testHashes(100, 200, 100)); err != nil {
				t.Fatal(err)
			}

			got, err := idx.Lookup(ctx, 100)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 {
				t.Fatalf("Lookup(100) = %v, want 2 postings", got)
			}
			// insertion order within the track
			if got[0].AnchorIdx != 0 || got[1].AnchorIdx != 20 {
				t.Fatalf("anchors = %d,%d, want 0,20", got[0].AnchorIdx, got[1].AnchorIdx)
			}
			for _, p := range got {
				if p.TrackID != "trk-1" {
					t.Fatalf("posting track = %q", p.TrackID)
				}
			}
		})
	}
}

func TestLookupUnknownHash(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			idx := be.open(t)
			defer idx.Close()

			got, err := idx.Lookup(context.Background(), 0xdeadbeef)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 0 {
				t.Fatalf("unknown hash returned %v", got)
			}
		})
	}
}

func TestLookupAll(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			idx := be.open(t)
			defer idx.Close()
			ctx := context.Background()

			a := Track{ID: "a", Title: "alpha", Kind: KindMovie}
			b := Track{ID: "b", Title: "beta", Kind: KindMovie}
			if err := idx.Ingest(ctx, a, testHashes(1, 2)); err != nil {
				t.Fatal(err)
			}
			if err := idx.Ingest(ctx, b, testHashes(2, 3)); err != nil {
				t.Fatal(err)
			}

			got, err := idx.LookupAll(ctx, []uint32{1, 2, 99})
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 2 {
				t.Fatalf("LookupAll returned %d hashes, want 2", len(got))
			}
			if len(got[1]) != 1 || got[1][0].TrackID != "a" {
				t.Fatalf("hash 1 postings = %v", got[1])
			}
			if len(got[2]) != 2 {
				t.Fatalf("hash 2 postings = %v, want one per track", got[2])
			}
			if _, ok := got[99]; ok {
				t.Fatal("absent hash present in result")
			}
		})
	}
}

func TestDuplicateTrackID(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			idx := be.open(t)
			defer idx.Close()
			ctx := context.Background()

			track := Track{ID: "dup", Title: "twice", Kind: KindMovie}
			if err := idx.Ingest(ctx, track, testHashes(7, 8)); err != nil {
				t.Fatal(err)
			}
			err := idx.Ingest(ctx, track, testHashes(7, 8))
			if !errors.Is(err, ErrDuplicateTrack) {
				t.Fatalf("second ingest = %v, want ErrDuplicateTrack", err)
			}

			// a rejected re-ingest must not append a second posting set
			got, err := idx.Lookup(ctx, 7)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 {
				t.Fatalf("hash 7 has %d postings after rejected re-ingest, want 1", len(got))
			}
		})
	}
}

func TestDuplicateMetadataSQLite(t *testing.T) {
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	a := Track{ID: "id-1", Title: "same show", Kind: KindEpisode, Season: 1, Episode: 2}
	b := Track{ID: "id-2", Title: "same show", Kind: KindEpisode, Season: 1, Episode: 2}
	if err := idx.Ingest(ctx, a, testHashes(1)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Ingest(ctx, b, testHashes(2)); !errors.Is(err, ErrDuplicateTrack) {
		t.Fatalf("metadata duplicate = %v, want ErrDuplicateTrack", err)
	}

	// the rolled-back ingest must leave no postings behind
	got, err := idx.Lookup(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("rolled-back ingest left postings: %v", got)
	}
}

func TestTrackLookup(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			idx := be.open(t)
			defer idx.Close()
			ctx := context.Background()

			want := Track{ID: "ep", Title: "breaking sand", Kind: KindEpisode, Season: 2, Episode: 5, DurationMs: 1200}
			if err := idx.Ingest(ctx, want, testHashes(42)); err != nil {
				t.Fatal(err)
			}

			got, err := idx.Track(ctx, "ep")
			if err != nil {
				t.Fatal(err)
			}
			if *got != want {
				t.Fatalf("Track = %+v, want %+v", *got, want)
			}

			if _, err := idx.Track(ctx, "missing"); !errors.Is(err, ErrTrackNotFound) {
				t.Fatalf("missing track = %v, want ErrTrackNotFound", err)
			}
		})
	}
}

func TestTracksOrdering(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			idx := be.open(t)
			defer idx.Close()
			ctx := context.Background()

			ingest := []Track{
				{ID: "1", Title: "zeta", Kind: KindMovie},
				{ID: "2", Title: "show", Kind: KindEpisode, Season: 2, Episode: 1},
				{ID: "3", Title: "show", Kind: KindEpisode, Season: 1, Episode: 3},
				{ID: "4", Title: "alpha", Kind: KindMovie},
			}
			for i, tr := range ingest {
				if err := idx.Ingest(ctx, tr, testHashes(uint32(i))); err != nil {
					t.Fatal(err)
				}
			}

			got, err := idx.Tracks(ctx)
			if err != nil {
				t.Fatal(err)
			}
			wantIDs := []string{"3", "2", "4", "1"} // episodes by season, then movies by title
			if len(got) != len(wantIDs) {
				t.Fatalf("got %d tracks, want %d", len(got), len(wantIDs))
			}
			for i, id := range wantIDs {
				if got[i].ID != id {
					t.Fatalf("position %d: track %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestStats(t *testing.T) {
	for _, be := range backends {
		t.Run(be.name, func(t *testing.T) {
			idx := be.open(t)
			defer idx.Close()
			ctx := context.Background()

			st, err := idx.Stats(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if st.Tracks != 0 || st.Postings != 0 {
				t.Fatalf("empty index stats = %+v", st)
			}

			movie := Track{ID: "m", Title: "a movie", Kind: KindMovie}
			episode := Track{ID: "e", Title: "a show", Kind: KindEpisode, Season: 1, Episode: 1}
			if err := idx.Ingest(ctx, movie, testHashes(1, 2, 3)); err != nil {
				t.Fatal(err)
			}
			if err := idx.Ingest(ctx, episode, testHashes(4, 5)); err != nil {
				t.Fatal(err)
			}

			st, err = idx.Stats(ctx)
			if err != nil {
				t.Fatal(err)
			}
			want := Stats{Tracks: 2, Movies: 1, Episodes: 1, Postings: 5}
			if st != want {
				t.Fatalf("Stats = %+v, want %+v", st, want)
			}
		})
	}
}

func TestBadgerReopenKeepsCatalog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "badger")
	ctx := context.Background()

	idx, err := OpenBadger(dir)
	if err != nil {
		t.Fatal(err)
	}
	track := Track{ID: "persist", Title: "still here", Kind: KindMovie}
	if err := idx.Ingest(ctx, track, testHashes(11, 12)); err != nil {
		t.Fatal(err)
	}
	if err := idx.Close(); err != nil {
		t.Fatal(err)
	}

	idx, err = OpenBadger(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()

	got, err := idx.Track(ctx, "persist")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "still here" {
		t.Fatalf("reopened track = %+v", got)
	}
	postings, err := idx.Lookup(ctx, 11)
	if err != nil {
		t.Fatal(err)
	}
	if len(postings) != 1 {
		t.Fatalf("reopened postings = %v", postings)
	}
}
