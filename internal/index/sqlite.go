package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Awwal-10/media-recognition/internal/fingerprint"
)

const postingBatchSize = 500

type trackRow struct {
	ID         string `gorm:"primaryKey;type:varchar(36)"`
	Title      string `gorm:"uniqueIndex:idx_track_unique,priority:1"`
	Kind       string `gorm:"uniqueIndex:idx_track_unique,priority:2"`
	Season     int    `gorm:"uniqueIndex:idx_track_unique,priority:3"`
	Episode    int    `gorm:"uniqueIndex:idx_track_unique,priority:4"`
	DurationMs int
	CreatedAt  time.Time
}

func (trackRow) TableName() string { return "tracks" }

type postingRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Hash      uint32 `gorm:"index:idx_posting_hash"`
	TrackID   string `gorm:"type:varchar(36);index:idx_posting_track"`
	AnchorIdx int
}

func (postingRow) TableName() string { return "postings" }

// SQLiteIndex stores the catalog in a single SQLite file via gorm. It is the
// default backend.
type SQLiteIndex struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the index database at path.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("index: creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("index: opening sqlite db: %w", err)
	}

	if err := db.AutoMigrate(&trackRow{}, &postingRow{}); err != nil {
		return nil, fmt.Errorf("index: auto migrate: %w", err)
	}

	return &SQLiteIndex{db: db}, nil
}

func (s *SQLiteIndex) Ingest(ctx context.Context, track Track, hashes []fingerprint.Hash) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing trackRow
		err := tx.Where("id = ?", track.ID).First(&existing).Error
		if err == nil {
			return ErrDuplicateTrack
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: querying track: %v", ErrIndexWriteFailure, err)
		}

		row := trackRow{
			ID:         track.ID,
			Title:      track.Title,
			Kind:       string(track.Kind),
			Season:     track.Season,
			Episode:    track.Episode,
			DurationMs: track.DurationMs,
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateTrack
			}
			return fmt.Errorf("%w: creating track: %v", ErrIndexWriteFailure, err)
		}

		rows := make([]postingRow, len(hashes))
		for i, h := range hashes {
			rows[i] = postingRow{Hash: h.Value, TrackID: track.ID, AnchorIdx: h.AnchorIdx}
		}
		if err := tx.CreateInBatches(rows, postingBatchSize).Error; err != nil {
			return fmt.Errorf("%w: inserting postings: %v", ErrIndexWriteFailure, err)
		}
		return nil
	})
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteIndex) Lookup(ctx context.Context, hash uint32) ([]Posting, error) {
	var rows []postingRow
	if err := s.db.WithContext(ctx).Where("hash = ?", hash).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("index: querying hash %d: %w", hash, err)
	}
	out := make([]Posting, len(rows))
	for i, r := range rows {
		out[i] = Posting{TrackID: r.TrackID, AnchorIdx: r.AnchorIdx}
	}
	return out, nil
}

func (s *SQLiteIndex) LookupAll(ctx context.Context, hashes []uint32) (map[uint32][]Posting, error) {
	result := make(map[uint32][]Posting)
	if len(hashes) == 0 {
		return result, nil
	}
	var rows []postingRow
	if err := s.db.WithContext(ctx).Where("hash IN ?", hashes).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("index: batch querying %d hashes: %w", len(hashes), err)
	}
	for _, r := range rows {
		result[r.Hash] = append(result[r.Hash], Posting{TrackID: r.TrackID, AnchorIdx: r.AnchorIdx})
	}
	return result, nil
}

func (s *SQLiteIndex) Track(ctx context.Context, id string) (*Track, error) {
	var row trackRow
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrackNotFound
		}
		return nil, fmt.Errorf("index: querying track %s: %w", id, err)
	}
	t := rowToTrack(row)
	return &t, nil
}

func (s *SQLiteIndex) Tracks(ctx context.Context) ([]Track, error) {
	var rows []trackRow
	if err := s.db.WithContext(ctx).Order("kind, title, season, episode").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("index: listing tracks: %w", err)
	}
	out := make([]Track, len(rows))
	for i, r := range rows {
		out[i] = rowToTrack(r)
	}
	return out, nil
}

func (s *SQLiteIndex) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var tracks, movies int64
	db := s.db.WithContext(ctx)
	if err := db.Model(&trackRow{}).Count(&tracks).Error; err != nil {
		return st, fmt.Errorf("index: counting tracks: %w", err)
	}
	if err := db.Model(&trackRow{}).Where("kind = ?", string(KindMovie)).Count(&movies).Error; err != nil {
		return st, fmt.Errorf("index: counting movies: %w", err)
	}
	if err := db.Model(&postingRow{}).Count(&st.Postings).Error; err != nil {
		return st, fmt.Errorf("index: counting postings: %w", err)
	}
	st.Tracks = int(tracks)
	st.Movies = int(movies)
	st.Episodes = int(tracks - movies)
	return st, nil
}

func (s *SQLiteIndex) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func rowToTrack(r trackRow) Track {
	return Track{
		ID:         r.ID,
		Title:      r.Title,
		Kind:       Kind(r.Kind),
		Season:     r.Season,
		Episode:    r.Episode,
		DurationMs: r.DurationMs,
	}
}
