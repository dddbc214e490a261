package metadata

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/reeldav/reeldav/internal/logger"
)

const cacheSize = 1000

// Provider is a metadata lookup backend. An empty string means no match.
type Provider interface {
	Name() string
	SearchMovie(ctx context.Context, title string, year int) string
	SearchTV(ctx context.Context, title string, year int) string
}

// Resolver maps raw parsed titles to display titles through an ordered
// provider cascade. Results, including misses, are cached for the life of
// the process.
type Resolver struct {
	movieProviders []Provider
	tvProviders    []Provider
	cache          *lru.Cache[string, string]
	logger         zerolog.Logger
}

// NewResolver wires the cascade: OMDb then TMDB for movies; OMDb, TMDB then
// TVMaze for series. Providers without credentials are left out entirely.
func NewResolver(omdbKey, tmdbKey string) *Resolver {
	cache, _ := lru.New[string, string](cacheSize)
	r := &Resolver{
		cache:  cache,
		logger: logger.New("metadata"),
	}

	if omdbKey != "" {
		omdb := newOMDBClient(omdbKey)
		r.movieProviders = append(r.movieProviders, omdb)
		r.tvProviders = append(r.tvProviders, omdb)
	}
	if tmdbKey != "" {
		tmdb := newTMDBClient(tmdbKey)
		r.movieProviders = append(r.movieProviders, tmdb)
		r.tvProviders = append(r.tvProviders, tmdb)
	}
	r.tvProviders = append(r.tvProviders, newTVMazeClient())

	sources := make([]string, 0, len(r.tvProviders))
	for _, p := range r.tvProviders {
		sources = append(sources, p.Name())
	}
	r.logger.Info().Str("cascade", strings.Join(sources, " -> ")).Msg("Metadata sources configured")
	return r
}

// SearchMovie returns a display title like "The Matrix (1999)", or "" when
// every provider misses.
func (r *Resolver) SearchMovie(ctx context.Context, title string, year int) string {
	return r.search(ctx, "movie", title, year, r.movieProviders)
}

// SearchTV returns a clean show title, or "" when every provider misses.
func (r *Resolver) SearchTV(ctx context.Context, title string, year int) string {
	return r.search(ctx, "series", title, year, r.tvProviders)
}

func (r *Resolver) search(ctx context.Context, kind, title string, year int, providers []Provider) string {
	for _, p := range providers {
		key := fmt.Sprintf("%s:%s:%s:%d", p.Name(), kind, title, year)
		if cached, ok := r.cache.Get(key); ok {
			if cached != "" {
				return cached
			}
			continue // cached miss, move down the cascade
		}

		var result string
		if kind == "movie" {
			result = p.SearchMovie(ctx, title, year)
		} else {
			result = p.SearchTV(ctx, title, year)
		}
		r.cache.Add(key, result)
		if result != "" {
			return result
		}
	}
	return ""
}
