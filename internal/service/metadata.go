package service

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/Awwal-10/media-recognition/internal/index"
)

// episodeTag matches the trailing sXXeYY marker in an episode file name,
// e.g. "breaking_sand_s02e05".
var episodeTag = regexp.MustCompile(`(?i)[._ -]s(\d{1,3})e(\d{1,3})$`)

// TrackFromPath derives catalog metadata from a media file path. Files whose
// name ends in an sXXeYY marker become episodes titled after the marker-less
// stem; everything else is a movie titled after the stem. Underscores are
// read as spaces.
func TrackFromPath(path string) index.Track {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	if m := episodeTag.FindStringSubmatch(stem); m != nil {
		season, _ := strconv.Atoi(m[1])
		episode, _ := strconv.Atoi(m[2])
		return index.Track{
			Title:   cleanTitle(stem[:len(stem)-len(m[0])]),
			Kind:    index.KindEpisode,
			Season:  season,
			Episode: episode,
		}
	}
	return index.Track{
		Title: cleanTitle(stem),
		Kind:  index.KindMovie,
	}
}

func cleanTitle(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	return strings.TrimSpace(s)
}
