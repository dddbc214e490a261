package vfs

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/reeldav/reeldav/internal/logger"
	"github.com/reeldav/reeldav/internal/utils"
	"github.com/reeldav/reeldav/pkg/classify"
	"github.com/reeldav/reeldav/pkg/upstream"
)

// Lister enumerates the upstream store.
type Lister interface {
	ListTorrents(ctx context.Context) []upstream.Entry
	ListTorrentFiles(ctx context.Context, torrent upstream.Entry) []upstream.Entry
}

// TitleResolver maps parsed titles to display titles. An empty string means
// no match was found and the caller falls back to the parsed title.
type TitleResolver interface {
	SearchMovie(ctx context.Context, title string, year int) string
	SearchTV(ctx context.Context, title string, year int) string
}

type invalidator interface {
	Invalidate()
}

// Stats is a point-in-time summary of the published snapshot.
type Stats struct {
	Movies    int       `json:"movies"`
	Series    int       `json:"series"`
	LastBuild time.Time `json:"last_build"`
}

// VFS holds an immutable snapshot of the virtual media tree. Reads walk the
// current snapshot lock-free; rebuilds assemble a fresh tree off to the side
// and swap it in atomically.
type VFS struct {
	lister   Lister
	resolver TitleResolver
	allowed  map[string]struct{}
	ttl      time.Duration
	logger   zerolog.Logger

	mu        sync.RWMutex
	root      *Dir
	lastBuild time.Time

	group     singleflight.Group
	ready     chan struct{}
	readyOnce sync.Once
}

func New(lister Lister, resolver TitleResolver, allowed map[string]struct{}, ttl time.Duration) *VFS {
	return &VFS{
		lister:   lister,
		resolver: resolver,
		allowed:  allowed,
		ttl:      ttl,
		logger:   logger.New("vfs"),
		ready:    make(chan struct{}),
	}
}

// IsReady reports whether at least one snapshot has been published.
func (v *VFS) IsReady() bool {
	select {
	case <-v.ready:
		return true
	default:
		return false
	}
}

// Stats summarizes the current snapshot for the health endpoint.
func (v *VFS) Stats() Stats {
	v.mu.RLock()
	defer v.mu.RUnlock()

	s := Stats{LastBuild: v.lastBuild}
	if v.root == nil {
		return s
	}
	if movies, ok := v.root.Child("Movies"); ok {
		s.Movies = movies.(*Dir).Len()
	}
	if series, ok := v.root.Child("Series"); ok {
		s.Series = series.(*Dir).Len()
	}
	return s
}

// Rebuild assembles a fresh snapshot and publishes it. Concurrent callers are
// coalesced into a single build.
func (v *VFS) Rebuild(ctx context.Context) error {
	_, err, _ := v.group.Do("rebuild", func() (interface{}, error) {
		start := time.Now()
		root, files := v.build(ctx)

		v.mu.Lock()
		v.root = root
		v.lastBuild = time.Now()
		v.mu.Unlock()
		v.readyOnce.Do(func() { close(v.ready) })

		v.logger.Info().
			Int("files", files).
			Dur("duration", time.Since(start)).
			Msg("Snapshot rebuilt")
		return nil, nil
	})
	return err
}

// EnsureFresh rebuilds when the snapshot is missing or older than the TTL.
func (v *VFS) EnsureFresh(ctx context.Context) error {
	v.mu.RLock()
	stale := v.root == nil || time.Since(v.lastBuild) > v.ttl
	v.mu.RUnlock()
	if !stale {
		return nil
	}
	return v.Rebuild(ctx)
}

func (v *VFS) build(ctx context.Context) (*Dir, int) {
	now := time.Now()
	root := NewDir("/", now)
	movies, _ := root.getOrCreateDir("Movies", now)
	series, _ := root.getOrCreateDir("Series", now)

	placed := 0
	for _, torrent := range v.lister.ListTorrents(ctx) {
		if !torrent.IsDir {
			continue
		}
		files := v.lister.ListTorrentFiles(ctx, torrent)
		for _, cf := range classify.Torrent(torrent.Name, files, v.allowed) {
			if err := v.place(ctx, movies, series, cf, now); err != nil {
				v.logger.Warn().Err(err).
					Str("torrent", torrent.Name).
					Str("file", cf.Filename).
					Msg("Skipping file")
				continue
			}
			placed++
		}
	}
	return root, placed
}

func (v *VFS) place(ctx context.Context, movies, series *Dir, cf classify.File, now time.Time) error {
	var parent *Dir

	if cf.Media.IsSeries {
		show := v.resolver.SearchTV(ctx, cf.Media.Title, cf.Media.Year)
		if show == "" {
			show = cf.Media.Title
		}
		showDir, err := series.getOrCreateDir(Sanitize(show), now)
		if err != nil {
			return err
		}

		season := 1
		if cf.Media.Season != nil {
			season = *cf.Media.Season
		}
		parent, err = showDir.getOrCreateDir(fmt.Sprintf("Season %02d", season), now)
		if err != nil {
			return err
		}
	} else {
		title := v.resolver.SearchMovie(ctx, cf.Media.Title, cf.Media.Year)
		if title == "" {
			if cf.Media.Year > 0 {
				title = fmt.Sprintf("%s (%d)", cf.Media.Title, cf.Media.Year)
			} else {
				title = cf.Media.Title
			}
		}
		var err error
		parent, err = movies.getOrCreateDir(Sanitize(title), now)
		if err != nil {
			return err
		}
	}

	return parent.addFile(NewFile(cf.Filename, cf.Size, cf.Href, now))
}

// Resolve walks the current snapshot to the node at the given slash path.
// The path must already be decoded and cleaned.
func (v *VFS) Resolve(ctx context.Context, name string) (Node, error) {
	if err := v.EnsureFresh(ctx); err != nil {
		return nil, err
	}

	v.mu.RLock()
	root := v.root
	v.mu.RUnlock()
	if root == nil {
		return nil, os.ErrNotExist
	}

	name = strings.Trim(name, "/")
	if name == "" {
		return root, nil
	}

	var node Node = root
	for _, segment := range strings.Split(name, "/") {
		dir, ok := node.(*Dir)
		if !ok {
			return nil, os.ErrNotExist
		}
		node, ok = dir.Child(segment)
		if !ok {
			return nil, os.ErrNotExist
		}
	}
	return node, nil
}

// Start performs the initial build and runs the periodic refresh until the
// context is cancelled. The refresh invalidates upstream listing caches so a
// scheduled rebuild always sees current data.
func (v *VFS) Start(ctx context.Context, refreshInterval string) error {
	if err := v.Rebuild(ctx); err != nil {
		v.logger.Error().Err(err).Msg("Initial snapshot build failed")
	}

	if refreshInterval == "" {
		refreshInterval = v.ttl.String()
	}
	jobDef, err := utils.ConvertToJobDef(refreshInterval)
	if err != nil {
		return fmt.Errorf("invalid refresh interval: %w", err)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	_, err = scheduler.NewJob(jobDef, gocron.NewTask(func() {
		if inv, ok := v.lister.(invalidator); ok {
			inv.Invalidate()
		}
		if err := v.Rebuild(ctx); err != nil {
			v.logger.Error().Err(err).Msg("Scheduled rebuild failed")
		}
	}))
	if err != nil {
		return err
	}

	scheduler.Start()
	v.logger.Info().Str("interval", refreshInterval).Msg("Refresh scheduler started")

	<-ctx.Done()
	return scheduler.Shutdown()
}
