package vfs

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/reeldav/reeldav/pkg/upstream"
)

var testAllowed = map[string]struct{}{
	"mkv": {}, "mp4": {}, "srt": {},
}

// fakeLister serves a canned upstream listing and counts calls.
type fakeLister struct {
	torrents    []upstream.Entry
	files       map[string][]upstream.Entry
	listCalls   int
	invalidated int
}

func (f *fakeLister) ListTorrents(ctx context.Context) []upstream.Entry {
	f.listCalls++
	return f.torrents
}

func (f *fakeLister) ListTorrentFiles(ctx context.Context, torrent upstream.Entry) []upstream.Entry {
	return f.files[torrent.Href]
}

func (f *fakeLister) Invalidate() { f.invalidated++ }

// fakeResolver maps parsed titles to display titles, empty meaning miss.
type fakeResolver struct {
	movies map[string]string
	tv     map[string]string
}

func (f *fakeResolver) SearchMovie(ctx context.Context, title string, year int) string {
	return f.movies[title]
}

func (f *fakeResolver) SearchTV(ctx context.Context, title string, year int) string {
	return f.tv[title]
}

func newTestVFS(t *testing.T, lister *fakeLister, resolver *fakeResolver) *VFS {
	t.Helper()

	v := New(lister, resolver, testAllowed, time.Hour)
	if err := v.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	return v
}

func torrent(name string) upstream.Entry {
	return upstream.Entry{Name: name, Href: "/torrents/" + name + "/", IsDir: true}
}

func file(torrentName, fileName string, size int64) upstream.Entry {
	return upstream.Entry{
		Name: fileName,
		Href: "/torrents/" + torrentName + "/" + fileName,
		Size: size,
	}
}

func mustResolve(t *testing.T, v *VFS, path string) Node {
	t.Helper()

	n, err := v.Resolve(context.Background(), path)
	if err != nil {
		t.Fatalf("Resolve(%q) failed: %v", path, err)
	}
	return n
}

func TestRootHasMoviesAndSeries(t *testing.T) {
	v := newTestVFS(t, &fakeLister{}, &fakeResolver{})

	root := mustResolve(t, v, "/").(*Dir)
	for _, name := range []string{"Movies", "Series"} {
		child, ok := root.Child(name)
		if !ok {
			t.Fatalf("Expected %q at the root", name)
		}
		if !child.IsDir() {
			t.Errorf("%q should be a directory", name)
		}
	}
	if root.Len() != 2 {
		t.Errorf("Expected exactly Movies and Series, got %d entries", root.Len())
	}
}

func TestMoviePlacementWithResolvedTitle(t *testing.T) {
	lister := &fakeLister{
		torrents: []upstream.Entry{torrent("The.Matrix.1999.1080p.BluRay")},
		files: map[string][]upstream.Entry{
			"/torrents/The.Matrix.1999.1080p.BluRay/": {
				file("The.Matrix.1999.1080p.BluRay", "The.Matrix.1999.1080p.mkv", 5000),
			},
		},
	}
	resolver := &fakeResolver{movies: map[string]string{"The Matrix": "The Matrix (1999)"}}
	v := newTestVFS(t, lister, resolver)

	n := mustResolve(t, v, "/Movies/The Matrix (1999)/The.Matrix.1999.1080p.mkv")
	f, ok := n.(*File)
	if !ok {
		t.Fatalf("Expected a file, got %T", n)
	}
	if f.Size() != 5000 {
		t.Errorf("Expected size 5000, got %d", f.Size())
	}
	if f.Href() != "/torrents/The.Matrix.1999.1080p.BluRay/The.Matrix.1999.1080p.mkv" {
		t.Errorf("Unexpected href %q", f.Href())
	}
}

func TestMovieFallbackTitleWhenResolverMisses(t *testing.T) {
	lister := &fakeLister{
		torrents: []upstream.Entry{torrent("Obscure.Film.2019.720p")},
		files: map[string][]upstream.Entry{
			"/torrents/Obscure.Film.2019.720p/": {
				file("Obscure.Film.2019.720p", "obscure.mkv", 1),
			},
		},
	}
	v := newTestVFS(t, lister, &fakeResolver{})

	mustResolve(t, v, "/Movies/Obscure Film (2019)/obscure.mkv")
}

func TestSeriesPlacement(t *testing.T) {
	lister := &fakeLister{
		torrents: []upstream.Entry{torrent("Gen.V.S01E03.1080p.WEB")},
		files: map[string][]upstream.Entry{
			"/torrents/Gen.V.S01E03.1080p.WEB/": {
				file("Gen.V.S01E03.1080p.WEB", "Gen.V.S01E03.mkv", 1),
				file("Gen.V.S01E03.1080p.WEB", "Gen.V.S01E03.srt", 1),
			},
		},
	}
	resolver := &fakeResolver{tv: map[string]string{"Gen V": "Gen V"}}
	v := newTestVFS(t, lister, resolver)

	season := mustResolve(t, v, "/Series/Gen V/Season 01").(*Dir)
	if season.Len() != 2 {
		t.Errorf("Expected video and subtitle in the season dir, got %d", season.Len())
	}
}

func TestSeasonZeroIsSpecials(t *testing.T) {
	lister := &fakeLister{
		torrents: []upstream.Entry{torrent("Gen.V.S00E01.Special.1080p")},
		files: map[string][]upstream.Entry{
			"/torrents/Gen.V.S00E01.Special.1080p/": {
				file("Gen.V.S00E01.Special.1080p", "special.mkv", 1),
			},
		},
	}
	resolver := &fakeResolver{tv: map[string]string{"Gen V": "Gen V"}}
	v := newTestVFS(t, lister, resolver)

	mustResolve(t, v, "/Series/Gen V/Season 00/special.mkv")
}

func TestSanitizedDirectoryNames(t *testing.T) {
	lister := &fakeLister{
		torrents: []upstream.Entry{torrent("Mission.Impossible.1996.1080p")},
		files: map[string][]upstream.Entry{
			"/torrents/Mission.Impossible.1996.1080p/": {
				file("Mission.Impossible.1996.1080p", "mi.mkv", 1),
			},
		},
	}
	resolver := &fakeResolver{movies: map[string]string{"Mission Impossible": "Mission: Impossible (1996)"}}
	v := newTestVFS(t, lister, resolver)

	mustResolve(t, v, "/Movies/Mission Impossible (1996)/mi.mkv")
}

func TestCollidingFileIsSkipped(t *testing.T) {
	lister := &fakeLister{
		torrents: []upstream.Entry{
			torrent("The.Matrix.1999.1080p"),
			torrent("The.Matrix.1999.2160p"),
		},
		files: map[string][]upstream.Entry{
			"/torrents/The.Matrix.1999.1080p/": {
				file("The.Matrix.1999.1080p", "matrix.mkv", 1),
			},
			"/torrents/The.Matrix.1999.2160p/": {
				file("The.Matrix.1999.2160p", "matrix.mkv", 2),
			},
		},
	}
	v := newTestVFS(t, lister, &fakeResolver{})

	dir := mustResolve(t, v, "/Movies/The Matrix (1999)").(*Dir)
	if dir.Len() != 1 {
		t.Fatalf("Expected colliding file to be skipped, got %d entries", dir.Len())
	}
	f := mustResolve(t, v, "/Movies/The Matrix (1999)/matrix.mkv").(*File)
	if f.Size() != 1 {
		t.Errorf("First writer should win, got size %d", f.Size())
	}
}

func TestResolveMissingPath(t *testing.T) {
	v := newTestVFS(t, &fakeLister{}, &fakeResolver{})

	if _, err := v.Resolve(context.Background(), "/Movies/Nope/nope.mkv"); !os.IsNotExist(err) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
	if _, err := v.Resolve(context.Background(), "/Nowhere"); !os.IsNotExist(err) {
		t.Errorf("Expected os.ErrNotExist, got %v", err)
	}
}

func TestEnsureFreshSkipsRecentSnapshot(t *testing.T) {
	lister := &fakeLister{}
	v := newTestVFS(t, lister, &fakeResolver{})

	for i := 0; i < 5; i++ {
		mustResolve(t, v, "/")
	}
	if lister.listCalls != 1 {
		t.Errorf("Expected a single listing within the TTL, got %d", lister.listCalls)
	}
}

func TestEnsureFreshRebuildsStaleSnapshot(t *testing.T) {
	lister := &fakeLister{}
	v := New(lister, &fakeResolver{}, testAllowed, time.Nanosecond)
	if err := v.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}

	time.Sleep(time.Millisecond)
	mustResolve(t, v, "/")
	if lister.listCalls < 2 {
		t.Errorf("Expected a rebuild after the TTL elapsed, got %d listings", lister.listCalls)
	}
}

func TestReadiness(t *testing.T) {
	v := New(&fakeLister{}, &fakeResolver{}, testAllowed, time.Hour)
	if v.IsReady() {
		t.Error("VFS should not be ready before the first build")
	}
	if err := v.Rebuild(context.Background()); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if !v.IsReady() {
		t.Error("VFS should be ready after the first build")
	}
}

func TestStats(t *testing.T) {
	lister := &fakeLister{
		torrents: []upstream.Entry{
			torrent("The.Matrix.1999.1080p"),
			torrent("Gen.V.S01E03.1080p"),
		},
		files: map[string][]upstream.Entry{
			"/torrents/The.Matrix.1999.1080p/": {file("The.Matrix.1999.1080p", "m.mkv", 1)},
			"/torrents/Gen.V.S01E03.1080p/":    {file("Gen.V.S01E03.1080p", "g.mkv", 1)},
		},
	}
	resolver := &fakeResolver{tv: map[string]string{"Gen V": "Gen V"}}
	v := newTestVFS(t, lister, resolver)

	stats := v.Stats()
	if stats.Movies != 1 || stats.Series != 1 {
		t.Errorf("Expected 1 movie and 1 series, got %d and %d", stats.Movies, stats.Series)
	}
	if stats.LastBuild.IsZero() {
		t.Error("Expected a build timestamp")
	}
}

func TestSanitize(t *testing.T) {
	cases := map[string]string{
		"Mission: Impossible":   "Mission Impossible",
		`What/If\Then`:          "What If Then",
		"A  B   C":              "A B C",
		"  trimmed  ":           "trimmed",
		`Quo"ted<and>piped|`:    "Quo ted and piped",
		"Who? What* Where:Why?": "Who What Where Why",
	}
	for in, want := range cases {
		if got := Sanitize(in); got != want {
			t.Errorf("Sanitize(%q) = %q, want %q", in, got, want)
		}
	}
}
