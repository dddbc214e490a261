package mediainfo

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cehbz/torrentname"
)

// MediaInfo is the structured result of parsing a torrent or file name.
// Season and Episode are nil when absent; IsSeries holds iff Season is set.
type MediaInfo struct {
	Title        string
	Year         int // 0 = unknown
	Season       *int
	Episode      *int
	IsSeries     bool
	OriginalName string

	// CleanTitle is filled in by metadata resolution, not by parsing.
	CleanTitle string
}

var (
	// e.g. "www.UIndex.org    -    The.Matrix.1999..."
	sitePrefixRe = regexp.MustCompile(`^www\.\S+\.\w+\s*[-–—]\s*`)

	seasonEpisodeRe = regexp.MustCompile(`(?i)S(\d{1,2})E(\d{1,2})`)
	seasonRe        = regexp.MustCompile(`(?i)S(\d{1,2})`)
)

func normalize(name string) string {
	name = strings.TrimSpace(sitePrefixRe.ReplaceAllString(name, ""))
	// Underscore-separated names parse badly; dots are the common case.
	if !strings.Contains(name, ".") && strings.Contains(name, "_") {
		name = strings.ReplaceAll(name, "_", ".")
	}
	return name
}

// Parse extracts media information from a release name.
func Parse(name string) MediaInfo {
	normalized := normalize(name)

	var (
		title           string
		year            int
		season, episode *int
	)

	if parsed := torrentname.Parse(normalized); parsed != nil {
		title = parsed.Title
		year = parsed.Year
		if parsed.Season > 0 {
			s := parsed.Season
			season = &s
		}
		if parsed.Episode > 0 {
			e := parsed.Episode
			episode = &e
		}
	}
	if strings.TrimSpace(title) == "" {
		title = name
	}

	// Rescue SxxEyy and season-pack markers the structured parser missed.
	if season == nil {
		if m := seasonEpisodeRe.FindStringSubmatch(name); m != nil {
			s, _ := strconv.Atoi(m[1])
			e, _ := strconv.Atoi(m[2])
			season, episode = &s, &e
		} else if s, ok := findSeasonPack(name); ok {
			season = &s
		}
	}

	title = cleanTitle(title)
	if title == "" {
		title = strings.TrimSpace(name)
	}

	return MediaInfo{
		Title:        title,
		Year:         year,
		Season:       season,
		Episode:      episode,
		IsSeries:     season != nil,
		OriginalName: name,
	}
}

// findSeasonPack matches "Sxx" not followed by an episode marker, for
// full-season torrents like "Show.Name.S03.COMPLETE".
func findSeasonPack(name string) (int, bool) {
	for _, m := range seasonRe.FindAllStringSubmatchIndex(name, -1) {
		end := m[1]
		if end < len(name) && (name[end] == 'E' || name[end] == 'e') {
			continue
		}
		s, err := strconv.Atoi(name[m[2]:m[3]])
		if err != nil {
			continue
		}
		return s, true
	}
	return 0, false
}

func cleanTitle(title string) string {
	title = strings.TrimRight(strings.TrimSpace(title), ".")
	// "GEN V" -> "Gen V"; mixed case is left alone.
	if utf8.RuneCountInString(title) > 2 && title == strings.ToUpper(title) {
		title = titleCase(title)
	}
	return title
}

func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
		} else {
			b.WriteRune(r)
			prevLetter = false
		}
	}
	return b.String()
}
