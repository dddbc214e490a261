package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/ratelimit"

	"github.com/reeldav/reeldav/internal/logger"
)

func newTMDBTestClient(baseURL string) *tmdbClient {
	return &tmdbClient{
		apiKey:  "testkey",
		baseURL: baseURL,
		http:    &http.Client{Timeout: 2 * time.Second},
		limiter: ratelimit.NewUnlimited(),
		logger:  logger.New("tmdb-test"),
	}
}

func TestTMDBSearchMoviePicksBestMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/movie" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("year"); got != "1999" {
			t.Errorf("Expected year param 1999, got %q", got)
		}
		fmt.Fprint(w, `{"results":[
			{"title":"The Matrix Revisited","original_title":"","release_date":"2001-11-19"},
			{"title":"The Matrix","original_title":"","release_date":"1999-03-31"}
		]}`)
	}))
	defer srv.Close()

	c := newTMDBTestClient(srv.URL)
	got := c.SearchMovie(context.Background(), "The Matrix", 1999)
	if got != "The Matrix (1999)" {
		t.Errorf("Expected 'The Matrix (1999)', got %q", got)
	}
}

func TestTMDBSearchMovieWithoutReleaseDate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[{"title":"Obscure Film","original_title":"","release_date":""}]}`)
	}))
	defer srv.Close()

	c := newTMDBTestClient(srv.URL)
	if got := c.SearchMovie(context.Background(), "Obscure Film", 0); got != "Obscure Film" {
		t.Errorf("Expected bare title without year, got %q", got)
	}
}

func TestTMDBSearchTV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/tv" {
			t.Errorf("Unexpected path %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"results":[{"name":"Gen V","original_name":"Gen V","first_air_date":"2023-09-28"}]}`)
	}))
	defer srv.Close()

	c := newTMDBTestClient(srv.URL)
	if got := c.SearchTV(context.Background(), "Gen V", 0); got != "Gen V" {
		t.Errorf("Expected 'Gen V', got %q", got)
	}
}

func TestTMDBSearchEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results":[]}`)
	}))
	defer srv.Close()

	c := newTMDBTestClient(srv.URL)
	if got := c.SearchTV(context.Background(), "Nothing", 0); got != "" {
		t.Errorf("Expected empty result, got %q", got)
	}
}
