package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/autobrr/autobrr/pkg/ttlcache"
	"github.com/rs/zerolog"

	"github.com/reeldav/reeldav/internal/logger"
)

const propfindTimeout = 30 * time.Second

// sharedClient is tuned for long-lived streaming connections against a single
// upstream host. No overall timeout: range reads are open-ended.
var sharedClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	},
	Timeout: 0,
}

// Entry is a file or directory listed by the upstream WebDAV server.
// Href keeps the upstream's URL encoding; Name is the last decoded segment.
type Entry struct {
	Name  string
	Href  string
	IsDir bool
	Size  int64
}

// Client talks to the cloud WebDAV store with a fixed credential pair.
// Directory listings are cached with the configured TTL.
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   zerolog.Logger

	ttl time.Duration

	mu       sync.Mutex
	listings *ttlcache.Cache[string, []Entry]
}

func New(baseURL, username, password string, ttl time.Duration) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		http:     sharedClient,
		logger:   logger.New("upstream"),
		ttl:      ttl,
		listings: newListingCache(ttl),
	}
}

func newListingCache(ttl time.Duration) *ttlcache.Cache[string, []Entry] {
	return ttlcache.New(ttlcache.Options[string, []Entry]{}.SetDefaultTTL(ttl))
}

// ListTorrents lists the torrent folders at /torrents (depth 1).
func (c *Client) ListTorrents(ctx context.Context) []Entry {
	const cacheKey = "torrents"
	if entries, ok := c.cacheGet(cacheKey); ok {
		return entries
	}

	entries := c.propfind(ctx, "/torrents")
	c.cacheSet(cacheKey, entries)
	c.logger.Info().Int("count", len(entries)).Msg("Fetched torrent entries from upstream")
	return entries
}

// ListTorrentFiles lists the non-directory children of a torrent folder.
func (c *Client) ListTorrentFiles(ctx context.Context, torrent Entry) []Entry {
	cacheKey := "files:" + torrent.Href
	if entries, ok := c.cacheGet(cacheKey); ok {
		return entries
	}

	entries := c.propfind(ctx, torrent.Href)
	files := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir {
			files = append(files, e)
		}
	}
	c.cacheSet(cacheKey, files)
	c.logger.Info().Int("count", len(files)).Str("torrent", torrent.Name).Msg("Fetched torrent files from upstream")
	return files
}

// FileURL returns the absolute streaming URL for a listed href.
func (c *Client) FileURL(href string) string {
	return c.baseURL + href
}

// OpenRange issues a ranged GET and returns the streaming body. A negative
// length requests everything from offset to the end of the file.
func (c *Client) OpenRange(ctx context.Context, url string, offset, length int64) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	if length < 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	} else {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("upstream returned status %d for %s", resp.StatusCode, url)
	}
	return resp.Body, nil
}

// Invalidate drops all cached listings.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.listings = newListingCache(c.ttl)
	c.mu.Unlock()
	c.logger.Info().Msg("Listing cache invalidated")
}

func (c *Client) cacheGet(key string) ([]Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listings.Get(key)
}

func (c *Client) cacheSet(key string, entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listings.Set(key, entries, ttlcache.DefaultTTL)
}
