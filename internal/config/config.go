package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	instance *Config
	once     sync.Once
)

// Config is loaded once from the environment. Flag overrides from the CLI are
// applied by main before any component reads it.
type Config struct {
	// Upstream WebDAV
	UpstreamURL string
	Username    string
	Password    string

	// Metadata providers. An empty key disables the provider.
	OMDBAPIKey string
	TMDBAPIKey string

	// Server
	BindAddress string
	Port        string

	// CacheTTL bounds both the upstream listing cache and tree staleness.
	CacheTTL time.Duration

	// RefreshInterval drives the background rebuild scheduler. Accepts a
	// duration ("5m"), a clock time ("04:05") or a cron expression. Empty
	// means "same as CacheTTL".
	RefreshInterval string

	LogLevel string

	VideoExtensions    []string
	SubtitleExtensions []string
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c *Config) load() {
	c.UpstreamURL = strings.TrimRight(getEnv("RD_WEBDAV_URL", "https://dav.real-debrid.com"), "/")
	c.Username = os.Getenv("RD_USERNAME")
	c.Password = os.Getenv("RD_PASSWORD")
	c.OMDBAPIKey = os.Getenv("OMDB_API_KEY")
	c.TMDBAPIKey = os.Getenv("TMDB_API_KEY")
	c.BindAddress = getEnv("HOST", "0.0.0.0")
	c.Port = getEnv("PORT", "8080")
	c.RefreshInterval = os.Getenv("REFRESH_INTERVAL")
	c.LogLevel = getEnv("LOG_LEVEL", "info")

	ttl := 300
	if v := os.Getenv("CACHE_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}
	c.CacheTTL = time.Duration(ttl) * time.Second

	c.VideoExtensions = []string{"mkv", "mp4", "avi", "iso", "m4v", "ts", "wmv"}
	c.SubtitleExtensions = []string{"srt", "sub", "ass", "ssa", "vtt"}
}

// AllowedExtensions returns the lowercased extension allowlist without dots.
func (c *Config) AllowedExtensions() map[string]struct{} {
	allowed := make(map[string]struct{}, len(c.VideoExtensions)+len(c.SubtitleExtensions))
	for _, ext := range c.VideoExtensions {
		allowed[ext] = struct{}{}
	}
	for _, ext := range c.SubtitleExtensions {
		allowed[ext] = struct{}{}
	}
	return allowed
}

func (c *Config) Validate() error {
	if c.Username == "" || c.Password == "" {
		return errors.New("RD_USERNAME and RD_PASSWORD must be set")
	}
	if c.UpstreamURL == "" {
		return errors.New("RD_WEBDAV_URL must not be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	return nil
}

func Get() *Config {
	once.Do(func() {
		instance = &Config{}
		instance.load()
	})
	return instance
}
