// Package service ties the pipeline together: decoding, fingerprinting,
// index persistence and matching behind one façade used by the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Awwal-10/media-recognition/internal/audio"
	"github.com/Awwal-10/media-recognition/internal/fingerprint"
	"github.com/Awwal-10/media-recognition/internal/index"
	"github.com/Awwal-10/media-recognition/internal/log"
	"github.com/Awwal-10/media-recognition/internal/matcher"
)

const defaultDBPath = "mediarec.sqlite3"

// Service is the application façade. One instance owns (or borrows) an index
// and is safe for concurrent use.
type Service struct {
	cfg     fingerprint.Config
	idx     index.Index
	match   *matcher.Matcher
	logger  *logrus.Logger
	ownsIdx bool
}

// Option customizes a Service at construction time.
type Option func(*options)

type options struct {
	cfg    fingerprint.Config
	idx    index.Index
	dbPath string
	logger *logrus.Logger
}

// WithConfig overrides the fingerprinting parameters. Index and query sides
// must agree on these.
func WithConfig(cfg fingerprint.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithIndex uses an already-open index; the caller keeps ownership and
// Service.Close will not close it.
func WithIndex(idx index.Index) Option {
	return func(o *options) { o.idx = idx }
}

// WithDBPath sets the SQLite database location. Ignored when WithIndex is
// given.
func WithDBPath(path string) Option {
	return func(o *options) { o.dbPath = path }
}

func WithLogger(l *logrus.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New builds a Service. Without WithIndex it opens a SQLite index at
// WithDBPath, the MEDIAREC_DB_PATH environment variable, or ./mediarec.sqlite3,
// in that order.
func New(opts ...Option) (*Service, error) {
	o := options{cfg: fingerprint.DefaultConfig(), logger: log.Logger}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	svc := &Service{cfg: o.cfg, idx: o.idx, logger: o.logger}
	if svc.idx == nil {
		path := o.dbPath
		if path == "" {
			path = os.Getenv("MEDIAREC_DB_PATH")
		}
		if path == "" {
			path = defaultDBPath
		}
		idx, err := index.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		svc.idx = idx
		svc.ownsIdx = true
	}
	svc.match = matcher.New(svc.idx, svc.cfg)
	return svc, nil
}

// trackNamespace seeds the deterministic UUIDs assigned to tracks ingested
// without an explicit id.
var trackNamespace = uuid.MustParse("9a3c51e8-1f6b-4a07-8d2e-6f4f0c2b7a11")

// IngestTrack fingerprints sig and registers it under meta. A missing ID is
// derived from the catalog metadata, so re-ingesting the same title maps to
// the same id on every backend and fails as a duplicate. DurationMs is always
// computed from the signal. The stored track is returned.
func (s *Service) IngestTrack(ctx context.Context, meta index.Track, sig audio.Signal) (index.Track, error) {
	if meta.ID == "" {
		name := fmt.Sprintf("%s|%s|%d|%d", meta.Title, meta.Kind, meta.Season, meta.Episode)
		meta.ID = uuid.NewSHA1(trackNamespace, []byte(name)).String()
	}
	meta.DurationMs = int(sig.Duration().Milliseconds())

	hashes, err := fingerprint.Generate(ctx, sig, s.cfg)
	if err != nil {
		return index.Track{}, fmt.Errorf("ingesting %q: %w", meta.Title, err)
	}
	if err := s.idx.Ingest(ctx, meta, hashes); err != nil {
		return index.Track{}, fmt.Errorf("ingesting %q: %w", meta.Title, err)
	}

	s.logger.WithFields(logrus.Fields{
		"track":  meta.Title,
		"kind":   meta.Kind,
		"hashes": len(hashes),
	}).Info("track ingested")
	return meta, nil
}

// IngestFile decodes a WAV file and ingests it, deriving catalog metadata
// from its path.
func (s *Service) IngestFile(ctx context.Context, path string) (index.Track, error) {
	sig, err := audio.ReadWAV(path)
	if err != nil {
		return index.Track{}, err
	}
	return s.IngestTrack(ctx, TrackFromPath(path), sig)
}

// IdentifyClip matches a decoded clip against the catalog, best match first.
func (s *Service) IdentifyClip(ctx context.Context, sig audio.Signal) ([]matcher.Match, error) {
	return s.match.Identify(ctx, sig)
}

// IdentifyFile decodes a WAV clip and matches it against the catalog.
func (s *Service) IdentifyFile(ctx context.Context, path string) ([]matcher.Match, error) {
	sig, err := audio.ReadWAV(path)
	if err != nil {
		return nil, err
	}
	return s.IdentifyClip(ctx, sig)
}

// IngestReport summarizes a bulk ingestion run.
type IngestReport struct {
	Ingested  int
	Duplicate int
	Failed    int
}

// Progress is called after every processed file during bulk ingestion.
type Progress func(done, total int)

// IngestDir walks root for .wav files and ingests them concurrently with the
// given number of workers. Duplicates and per-file failures are logged and
// counted, never fatal; only a directory walk error or context cancellation
// aborts the run.
func (s *Service) IngestDir(ctx context.Context, root string, workers int, progress Progress) (IngestReport, error) {
	if workers < 1 {
		workers = 1
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".wav") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return IngestReport{}, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(paths)

	var (
		mu     sync.Mutex
		report IngestReport
		done   int
	)
	jobs := make(chan string)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				_, err := s.IngestFile(ctx, path)

				mu.Lock()
				switch {
				case err == nil:
					report.Ingested++
				case errors.Is(err, index.ErrDuplicateTrack):
					report.Duplicate++
					s.logger.WithField("file", path).Warn("already in catalog, skipped")
				default:
					report.Failed++
					s.logger.WithField("file", path).WithError(err).Error("ingestion failed")
				}
				done++
				if progress != nil {
					progress(done, len(paths))
				}
				mu.Unlock()
			}
		}()
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			break
		}
		jobs <- path
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// ListTracks returns the catalog ordered by kind, title, season, episode.
func (s *Service) ListTracks(ctx context.Context) ([]index.Track, error) {
	return s.idx.Tracks(ctx)
}

// Stats reports catalog counters.
func (s *Service) Stats(ctx context.Context) (index.Stats, error) {
	return s.idx.Stats(ctx)
}

// Close releases the index if this Service opened it.
func (s *Service) Close() error {
	if s.ownsIdx {
		return s.idx.Close()
	}
	return nil
}
