package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"

	"github.com/reeldav/reeldav/internal/logger"
)

const tmdbAPIURL = "https://api.themoviedb.org/3"

type tmdbClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter ratelimit.Limiter
	logger  zerolog.Logger
}

func newTMDBClient(apiKey string) *tmdbClient {
	return &tmdbClient{
		apiKey:  apiKey,
		baseURL: tmdbAPIURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: ratelimit.New(10),
		logger:  logger.New("tmdb"),
	}
}

func (c *tmdbClient) Name() string { return "tmdb" }

type tmdbMovie struct {
	Title         string `json:"title"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
}

type tmdbShow struct {
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	FirstAirDate string `json:"first_air_date"`
}

func (c *tmdbClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)

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
		return fmt.Errorf("tmdb returned status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *tmdbClient) SearchMovie(ctx context.Context, title string, year int) string {
	params := url.Values{}
	params.Set("query", title)
	if year > 0 {
		params.Set("year", strconv.Itoa(year))
	}

	var data struct {
		Results []tmdbMovie `json:"results"`
	}
	if err := c.get(ctx, "/search/movie", params, &data); err != nil {
		c.logger.Error().Err(err).Str("title", title).Msg("TMDB movie search failed")
		return ""
	}
	if len(data.Results) == 0 {
		return ""
	}

	movie := bestMatch(title, data.Results,
		func(m tmdbMovie) string { return m.Title },
		func(m tmdbMovie) string { return m.OriginalTitle },
	)
	formatted := movie.Title
	if len(movie.ReleaseDate) >= 4 {
		formatted = fmt.Sprintf("%s (%s)", movie.Title, movie.ReleaseDate[:4])
	}
	c.logger.Info().Str("title", title).Str("match", formatted).Msg("TMDB movie match")
	return formatted
}

func (c *tmdbClient) SearchTV(ctx context.Context, title string, year int) string {
	params := url.Values{}
	params.Set("query", title)
	if year > 0 {
		params.Set("first_air_date_year", strconv.Itoa(year))
	}

	var data struct {
		Results []tmdbShow `json:"results"`
	}
	if err := c.get(ctx, "/search/tv", params, &data); err != nil {
		c.logger.Error().Err(err).Str("title", title).Msg("TMDB TV search failed")
		return ""
	}
	if len(data.Results) == 0 {
		return ""
	}

	show := bestMatch(title, data.Results,
		func(s tmdbShow) string { return s.Name },
		func(s tmdbShow) string { return s.OriginalName },
	)
	c.logger.Info().Str("title", title).Str("match", show.Name).Msg("TMDB TV match")
	return show.Name
}
