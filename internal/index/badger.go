package index

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"

	"github.com/Awwal-10/media-recognition/internal/fingerprint"
)

// Key layout:
//
//	t/<trackID>            -> JSON track metadata
//	p/<hash BE32>/<trackID> -> anchor indexes, 4 bytes each, insertion order
//
// Postings are flushed first via a write batch and the track record commits
// last. Lookups join against the set of committed tracks, so postings from a
// failed or in-flight ingest are never visible; a retry with the same id
// simply overwrites them.
var (
	trackPrefix   = []byte("t/")
	postingPrefix = []byte("p/")
)

// BadgerIndex is the embedded KV backend, suited to bulk ingestion of large
// catalogs.
type BadgerIndex struct {
	db *badger.DB

	mu     sync.RWMutex
	tracks map[string]Track
}

// OpenBadger opens (creating if needed) a Badger-backed index at dir.
func OpenBadger(dir string) (*BadgerIndex, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("index: opening badger db: %w", err)
	}

	idx := &BadgerIndex{db: db, tracks: make(map[string]Track)}
	if err := idx.loadTracks(); err != nil {
		db.Close()
		return nil, err
	}
	return idx, nil
}

func (b *BadgerIndex) loadTracks() error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = trackPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("index: reading track record: %w", err)
			}
			var t Track
			if err := json.Unmarshal(val, &t); err != nil {
				return fmt.Errorf("index: decoding track record: %w", err)
			}
			b.tracks[t.ID] = t
		}
		return nil
	})
}

func trackKey(id string) []byte {
	return append(append([]byte{}, trackPrefix...), id...)
}

func postingKey(hash uint32, trackID string) []byte {
	key := make([]byte, 0, len(postingPrefix)+4+1+len(trackID))
	key = append(key, postingPrefix...)
	key = binary.BigEndian.AppendUint32(key, hash)
	key = append(key, '/')
	return append(key, trackID...)
}

func (b *BadgerIndex) Ingest(ctx context.Context, track Track, hashes []fingerprint.Hash) error {
	b.mu.RLock()
	_, exists := b.tracks[track.ID]
	b.mu.RUnlock()
	if exists {
		return ErrDuplicateTrack
	}

	// group anchors per hash, preserving insertion order
	order := make([]uint32, 0, len(hashes))
	anchors := make(map[uint32][]byte, len(hashes))
	for _, h := range hashes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := anchors[h.Value]; !ok {
			order = append(order, h.Value)
		}
		anchors[h.Value] = binary.BigEndian.AppendUint32(anchors[h.Value], uint32(h.AnchorIdx))
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, hash := range order {
		if err := wb.Set(postingKey(hash, track.ID), anchors[hash]); err != nil {
			return fmt.Errorf("%w: batching postings: %v", ErrIndexWriteFailure, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("%w: flushing postings: %v", ErrIndexWriteFailure, err)
	}

	meta, err := json.Marshal(track)
	if err != nil {
		return fmt.Errorf("%w: encoding track: %v", ErrIndexWriteFailure, err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(trackKey(track.ID)); err == nil {
			return ErrDuplicateTrack
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(trackKey(track.ID), meta)
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateTrack) {
			return ErrDuplicateTrack
		}
		return fmt.Errorf("%w: committing track: %v", ErrIndexWriteFailure, err)
	}

	b.mu.Lock()
	b.tracks[track.ID] = track
	b.mu.Unlock()
	return nil
}

func (b *BadgerIndex) Lookup(ctx context.Context, hash uint32) ([]Posting, error) {
	var out []Posting
	err := b.db.View(func(txn *badger.Txn) error {
		return b.appendPostings(txn, hash, &out)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BadgerIndex) LookupAll(ctx context.Context, hashes []uint32) (map[uint32][]Posting, error) {
	result := make(map[uint32][]Posting)
	err := b.db.View(func(txn *badger.Txn) error {
		for _, hash := range hashes {
			if err := ctx.Err(); err != nil {
				return err
			}
			var postings []Posting
			if err := b.appendPostings(txn, hash, &postings); err != nil {
				return err
			}
			if len(postings) > 0 {
				result[hash] = postings
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// appendPostings scans p/<hash>/ and appends postings whose track has
// committed.
func (b *BadgerIndex) appendPostings(txn *badger.Txn, hash uint32, out *[]Posting) error {
	prefix := postingKey(hash, "")

	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		trackID := string(bytes.TrimPrefix(item.Key(), prefix))

		b.mu.RLock()
		_, committed := b.tracks[trackID]
		b.mu.RUnlock()
		if !committed {
			continue
		}

		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("index: reading postings for hash %d: %w", hash, err)
		}
		for i := 0; i+4 <= len(val); i += 4 {
			*out = append(*out, Posting{
				TrackID:   trackID,
				AnchorIdx: int(binary.BigEndian.Uint32(val[i:])),
			})
		}
	}
	return nil
}

func (b *BadgerIndex) Track(ctx context.Context, id string) (*Track, error) {
	b.mu.RLock()
	t, ok := b.tracks[id]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrTrackNotFound
	}
	return &t, nil
}

func (b *BadgerIndex) Tracks(ctx context.Context) ([]Track, error) {
	b.mu.RLock()
	out := make([]Track, 0, len(b.tracks))
	for _, t := range b.tracks {
		out = append(out, t)
	}
	b.mu.RUnlock()

	sortTracks(out)
	return out, nil
}

func (b *BadgerIndex) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	b.mu.RLock()
	st.Tracks = len(b.tracks)
	for _, t := range b.tracks {
		if t.Kind == KindMovie {
			st.Movies++
		} else {
			st.Episodes++
		}
	}
	b.mu.RUnlock()

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = postingPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			st.Postings += it.Item().ValueSize() / 4
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("index: counting postings: %w", err)
	}
	return st, nil
}

func (b *BadgerIndex) Close() error {
	return b.db.Close()
}
