// mediarec is the command line front end: build a fingerprint catalog from
// WAV files and identify short clips against it.
//
//	mediarec ingest  [-workers N] <file-or-directory>
//	mediarec identify [-top N] <clip.wav>
//	mediarec list
//	mediarec stats
//
// Environment: MEDIAREC_DB_PATH (SQLite file or Badger directory),
// MEDIAREC_BACKEND (sqlite|badger, default sqlite), LOG_LEVEL.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/Awwal-10/media-recognition/internal/index"
	"github.com/Awwal-10/media-recognition/internal/log"
	"github.com/Awwal-10/media-recognition/internal/matcher"
	"github.com/Awwal-10/media-recognition/internal/service"
)

func main() {
	godotenv.Load()
	log.Init()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "ingest":
		err = runIngest(ctx, os.Args[2:])
	case "identify":
		err = runIdentify(ctx, os.Args[2:])
	case "list":
		err = runList(ctx)
	case "stats":
		err = runStats(ctx)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Logger.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  mediarec ingest  [-workers N] <file-or-directory>
  mediarec identify [-top N] <clip.wav>
  mediarec list
  mediarec stats`)
}

// newService opens the backend named by MEDIAREC_BACKEND. The returned
// closer releases both the service and any index opened here.
func newService() (*service.Service, func() error, error) {
	if os.Getenv("MEDIAREC_BACKEND") == "badger" {
		dir := os.Getenv("MEDIAREC_DB_PATH")
		if dir == "" {
			dir = "mediarec.badger"
		}
		idx, err := index.OpenBadger(dir)
		if err != nil {
			return nil, nil, err
		}
		svc, err := service.New(service.WithIndex(idx))
		if err != nil {
			idx.Close()
			return nil, nil, err
		}
		return svc, idx.Close, nil
	}
	svc, err := service.New()
	if err != nil {
		return nil, nil, err
	}
	return svc, svc.Close, nil
}

func runIngest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	workers := fs.Int("workers", runtime.NumCPU(), "concurrent ingestion workers")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("ingest: expected exactly one file or directory")
	}
	target := fs.Arg(0)

	svc, closeSvc, err := newService()
	if err != nil {
		return err
	}
	defer closeSvc()

	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		track, err := svc.IngestFile(ctx, target)
		if err != nil {
			return err
		}
		fmt.Printf("ingested %s\n", describeTrack(track))
		return nil
	}

	progress := mpb.New(mpb.WithWidth(64))
	var bar *mpb.Bar
	report, err := svc.IngestDir(ctx, target, *workers, func(done, total int) {
		if bar == nil {
			bar = progress.AddBar(int64(total),
				mpb.PrependDecorators(
					decor.Name("ingesting "),
					decor.CountersNoUnit("%d / %d"),
				),
				mpb.AppendDecorators(decor.Percentage()),
			)
		}
		bar.SetCurrent(int64(done))
	})
	progress.Wait()
	if err != nil {
		return err
	}
	fmt.Printf("ingested %d, skipped %d duplicates, %d failed\n",
		report.Ingested, report.Duplicate, report.Failed)
	return nil
}

func runIdentify(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("identify", flag.ExitOnError)
	top := fs.Int("top", 1, "number of candidates to print")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("identify: expected exactly one clip file")
	}

	svc, closeSvc, err := newService()
	if err != nil {
		return err
	}
	defer closeSvc()

	matches, err := svc.IdentifyFile(ctx, fs.Arg(0))
	if errors.Is(err, matcher.ErrNoMatchFound) {
		fmt.Println("no match found")
		return nil
	}
	if err != nil {
		return err
	}

	if *top < len(matches) {
		matches = matches[:*top]
	}
	for i, m := range matches {
		fmt.Printf("%d. %s  (offset %.1fs, score %d, confidence %.2f)\n",
			i+1, describeTrack(m.Track), m.OffsetSeconds, m.Score, m.Confidence)
	}
	return nil
}

func runList(ctx context.Context) error {
	svc, closeSvc, err := newService()
	if err != nil {
		return err
	}
	defer closeSvc()

	tracks, err := svc.ListTracks(ctx)
	if err != nil {
		return err
	}
	if len(tracks) == 0 {
		fmt.Println("catalog is empty")
		return nil
	}
	for _, t := range tracks {
		fmt.Printf("%-36s  %s\n", t.ID, describeTrack(t))
	}
	return nil
}

func runStats(ctx context.Context) error {
	svc, closeSvc, err := newService()
	if err != nil {
		return err
	}
	defer closeSvc()

	st, err := svc.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("tracks:   %s (%s movies, %s episodes)\n",
		humanize.Comma(int64(st.Tracks)), humanize.Comma(int64(st.Movies)), humanize.Comma(int64(st.Episodes)))
	fmt.Printf("postings: %s\n", humanize.Comma(st.Postings))
	return nil
}

func describeTrack(t index.Track) string {
	if t.Kind == index.KindEpisode {
		return fmt.Sprintf("%s s%02de%02d", t.Title, t.Season, t.Episode)
	}
	return t.Title
}
