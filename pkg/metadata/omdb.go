package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"

	"github.com/reeldav/reeldav/internal/logger"
)

const omdbAPIURL = "https://www.omdbapi.com/"

type omdbClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter ratelimit.Limiter
	logger  zerolog.Logger
}

func newOMDBClient(apiKey string) *omdbClient {
	return &omdbClient{
		apiKey:  apiKey,
		baseURL: omdbAPIURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: ratelimit.New(5),
		logger:  logger.New("omdb"),
	}
}

func (c *omdbClient) Name() string { return "omdb" }

type omdbSearchItem struct {
	Title string `json:"Title"`
	Year  string `json:"Year"`
}

type omdbSearchResponse struct {
	Response string           `json:"Response"`
	Search   []omdbSearchItem `json:"Search"`
}

func (c *omdbClient) query(ctx context.Context, title string, year int, mediaType string) (*omdbSearchResponse, error) {
	params := url.Values{}
	params.Set("apikey", c.apiKey)
	params.Set("s", title)
	params.Set("type", mediaType)
	if year > 0 {
		params.Set("y", strconv.Itoa(year))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	c.limiter.Take()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("omdb returned status %d", resp.StatusCode)
	}

	var data omdbSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// search returns the first result, retrying once without the year when a
// year-constrained search comes back empty.
func (c *omdbClient) search(ctx context.Context, title string, year int, mediaType string) *omdbSearchItem {
	data, err := c.query(ctx, title, year, mediaType)
	if err != nil {
		c.logger.Error().Err(err).Str("title", title).Msg("OMDb search failed")
		return nil
	}
	if data.Response != "True" && year > 0 {
		if retried, err := c.query(ctx, title, 0, mediaType); err == nil {
			data = retried
		}
	}
	if data.Response != "True" || len(data.Search) == 0 {
		return nil
	}
	return &data.Search[0]
}

func (c *omdbClient) SearchMovie(ctx context.Context, title string, year int) string {
	result := c.search(ctx, title, year, "movie")
	if result == nil {
		return ""
	}
	yr := strings.TrimRight(result.Year, "–")
	formatted := result.Title
	if yr != "" {
		formatted = fmt.Sprintf("%s (%s)", result.Title, yr)
	}
	c.logger.Info().Str("title", title).Str("match", formatted).Msg("OMDb movie match")
	return formatted
}

func (c *omdbClient) SearchTV(ctx context.Context, title string, year int) string {
	result := c.search(ctx, title, year, "series")
	if result == nil {
		return ""
	}
	c.logger.Info().Str("title", title).Str("match", result.Title).Msg("OMDb TV match")
	return result.Title
}
