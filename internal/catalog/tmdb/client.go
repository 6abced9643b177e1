package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"crosslink/internal/metrics"
	"crosslink/internal/services"
)

// Season describes one TV season as TMDB lists it.
type Season struct {
	Number       int    `json:"season_number"`
	Name         string `json:"name"`
	AirYear      int    `json:"air_year"`
	EpisodeCount int    `json:"episode_count"`
}

// Details is the subset of TMDB item metadata the resolver needs.
type Details struct {
	Key           Key      `json:"-"`
	Title         string   `json:"title"`
	OriginalTitle string   `json:"original_title"`
	Language      string   `json:"original_language"`
	Year          int      `json:"year"`
	Seasons       []Season `json:"seasons,omitempty"`
}

// Season returns the season with the given number, if listed.
func (d *Details) Season(number int) (Season, bool) {
	if d == nil {
		return Season{}, false
	}
	for _, s := range d.Seasons {
		if s.Number == number {
			return s, true
		}
	}
	return Season{}, false
}

// SearchItem is one TMDB multi-search hit restricted to TV and movies.
type SearchItem struct {
	Key   Key
	Title string
	Year  int
}

// Client provides access to the TMDB API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
	limiter    *rate.Limiter
	metrics    *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRequestsPerSecond replaces the default request rate. Zero or negative
// disables throttling.
func WithRequestsPerSecond(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithMetrics records request outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a TMDB client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tmdb", "new client", "tmdb api key required", nil)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "tmdb", "new client", "tmdb base url required", nil)
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(4), 4),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type searchPayload struct {
	Results []struct {
		ID           int64  `json:"id"`
		MediaType    string `json:"media_type"`
		Title        string `json:"title"`
		Name         string `json:"name"`
		ReleaseDate  string `json:"release_date"`
		FirstAirDate string `json:"first_air_date"`
	} `json:"results"`
}

// Search runs a multi search and keeps TV and movie hits in TMDB's order.
func (c *Client) Search(ctx context.Context, query string) ([]SearchItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, services.Wrap(services.ErrValidation, "tmdb", "search", "query must not be empty", nil)
	}
	params := url.Values{}
	params.Set("query", query)

	var payload searchPayload
	if err := c.getJSON(ctx, "search", "/search/multi", params, &payload); err != nil {
		return nil, err
	}
	items := make([]SearchItem, 0, len(payload.Results))
	for _, r := range payload.Results {
		switch MediaType(r.MediaType) {
		case MediaTV:
			items = append(items, SearchItem{Key: Key{Media: MediaTV, ID: r.ID}, Title: r.Name, Year: yearOf(r.FirstAirDate)})
		case MediaMovie:
			items = append(items, SearchItem{Key: Key{Media: MediaMovie, ID: r.ID}, Title: r.Title, Year: yearOf(r.ReleaseDate)})
		}
	}
	return items, nil
}

type detailsPayload struct {
	Title            string `json:"title"`
	OriginalTitle    string `json:"original_title"`
	ReleaseDate      string `json:"release_date"`
	Name             string `json:"name"`
	OriginalName     string `json:"original_name"`
	FirstAirDate     string `json:"first_air_date"`
	OriginalLanguage string `json:"original_language"`
	Seasons          []struct {
		SeasonNumber int    `json:"season_number"`
		Name         string `json:"name"`
		AirDate      string `json:"air_date"`
		EpisodeCount int    `json:"episode_count"`
	} `json:"seasons"`
}

// GetDetails fetches title, original title, year, and seasons for key.
// Specials (season 0) are omitted.
func (c *Client) GetDetails(ctx context.Context, key Key) (*Details, error) {
	if key.ID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "tmdb", "details", "id must be positive", nil)
	}
	var payload detailsPayload
	path := fmt.Sprintf("/%s/%d", key.Media, key.ID)
	if err := c.getJSON(ctx, "details", path, url.Values{}, &payload); err != nil {
		return nil, err
	}

	details := &Details{Key: key, Language: payload.OriginalLanguage}
	switch key.Media {
	case MediaTV:
		details.Title = payload.Name
		details.OriginalTitle = payload.OriginalName
		details.Year = yearOf(payload.FirstAirDate)
		for _, s := range payload.Seasons {
			if s.SeasonNumber <= 0 {
				continue
			}
			details.Seasons = append(details.Seasons, Season{
				Number:       s.SeasonNumber,
				Name:         s.Name,
				AirYear:      yearOf(s.AirDate),
				EpisodeCount: s.EpisodeCount,
			})
		}
	default:
		details.Title = payload.Title
		details.OriginalTitle = payload.OriginalTitle
		details.Year = yearOf(payload.ReleaseDate)
	}
	return details, nil
}

func (c *Client) getJSON(ctx context.Context, operation, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "tmdb", operation, "parse tmdb url", err)
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("tmdb %s: wait for rate limiter: %w", operation, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		c.metrics.UpstreamRequest("tmdb", operation, metrics.OutcomeFailure)
		return services.Wrap(services.ErrUpstreamUnavailable, "tmdb", operation, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		c.metrics.UpstreamRequest("tmdb", operation, metrics.OutcomeMiss)
		return services.Wrap(services.ErrNotFound, "tmdb", operation, fmt.Sprintf("tmdb %s returned 404", operation), nil)
	case resp.StatusCode != http.StatusOK:
		c.metrics.UpstreamRequest("tmdb", operation, metrics.OutcomeFailure)
		return services.Wrap(services.ErrUpstreamUnavailable, "tmdb", operation, fmt.Sprintf("tmdb %s returned %d (latency=%v)", operation, resp.StatusCode, latency), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.UpstreamRequest("tmdb", operation, metrics.OutcomeFailure)
		return services.Wrap(services.ErrUpstreamUnavailable, "tmdb", operation, "decode tmdb response", err)
	}
	c.metrics.UpstreamRequest("tmdb", operation, metrics.OutcomeSuccess)
	return nil
}

func yearOf(date string) int {
	date = strings.TrimSpace(date)
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// IsNotFound reports whether err came from a 404.
func IsNotFound(err error) bool {
	return errors.Is(err, services.ErrNotFound)
}
