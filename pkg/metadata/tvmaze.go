package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"

	"github.com/reeldav/reeldav/internal/logger"
)

// TVMaze is free and keyless, which makes it the series fallback of last
// resort. It has no movie database.
const tvmazeAPIURL = "https://api.tvmaze.com"

type tvmazeClient struct {
	baseURL string
	http    *http.Client
	limiter ratelimit.Limiter
	logger  zerolog.Logger
}

func newTVMazeClient() *tvmazeClient {
	return &tvmazeClient{
		baseURL: tvmazeAPIURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: ratelimit.New(5),
		logger:  logger.New("tvmaze"),
	}
}

func (c *tvmazeClient) Name() string { return "tvmaze" }

func (c *tvmazeClient) SearchMovie(ctx context.Context, title string, year int) string {
	return ""
}

func (c *tvmazeClient) get(ctx context.Context, endpoint, query string, out any) error {
	params := url.Values{}
	params.Set("q", query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	c.limiter.Take()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tvmaze returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *tvmazeClient) SearchTV(ctx context.Context, title string, year int) string {
	// singlesearch returns the best fuzzy match directly.
	var single struct {
		Name string `json:"name"`
	}
	if err := c.get(ctx, "/singlesearch/shows", title, &single); err == nil && single.Name != "" {
		c.logger.Info().Str("title", title).Str("match", single.Name).Msg("TVMaze match")
		return single.Name
	}

	var results []struct {
		Show struct {
			Name string `json:"name"`
		} `json:"show"`
	}
	if err := c.get(ctx, "/search/shows", title, &results); err != nil {
		c.logger.Debug().Err(err).Str("title", title).Msg("TVMaze search failed")
		return ""
	}
	if len(results) == 0 || results[0].Show.Name == "" {
		return ""
	}
	c.logger.Info().Str("title", title).Str("match", results[0].Show.Name).Msg("TVMaze search match")
	return results[0].Show.Name
}
