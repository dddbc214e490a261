package classify

import (
	"path/filepath"
	"strings"

	"github.com/reeldav/reeldav/pkg/mediainfo"
	"github.com/reeldav/reeldav/pkg/upstream"
)

// File is an upstream file annotated with its parsed media placement.
type File struct {
	Media    mediainfo.MediaInfo
	Filename string
	Href     string
	Size     int64
}

// Torrent classifies the files of one torrent folder. The torrent name
// carries the canonical title; per-file names win for season and episode.
// Files outside the extension allowlist are dropped.
func Torrent(torrentName string, files []upstream.Entry, allowed map[string]struct{}) []File {
	torrentInfo := mediainfo.Parse(torrentName)

	results := make([]File, 0, len(files))
	for _, f := range files {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(f.Name)), ".")
		if _, ok := allowed[ext]; !ok {
			continue
		}

		fileInfo := mediainfo.Parse(f.Name)

		media := mediainfo.MediaInfo{
			Title:        firstNonEmpty(torrentInfo.Title, fileInfo.Title),
			Year:         firstNonZero(torrentInfo.Year, fileInfo.Year),
			Season:       firstNonNil(fileInfo.Season, torrentInfo.Season),
			Episode:      firstNonNil(fileInfo.Episode, torrentInfo.Episode),
			IsSeries:     fileInfo.IsSeries || torrentInfo.IsSeries,
			OriginalName: torrentName,
		}

		results = append(results, File{
			Media:    media,
			Filename: f.Name,
			Href:     f.Href,
			Size:     f.Size,
		})
	}
	return results
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonZero(a, b int) int {
	if a != 0 {
		return a
	}
	return b
}

func firstNonNil(a, b *int) *int {
	if a != nil {
		return a
	}
	return b
}
