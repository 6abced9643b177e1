package mdl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	gobreaker "github.com/sony/gobreaker/v2"

	"crosslink/internal/logging"
	"crosslink/internal/metrics"
	"crosslink/internal/services"
)

const breakerName = "mdl-proxy"

// Client talks to the proxy. It is safe for concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*jason.Object]
	logger     *slog.Logger
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

// WithTimeout sets the per-call deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger used for degraded calls.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics records request outcomes and breaker state.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithCircuitBreaker opens the circuit after threshold consecutive failures
// and rejects calls until cooldown has elapsed. A 404 is not a failure.
func WithCircuitBreaker(threshold uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		if threshold == 0 {
			return
		}
		c.breaker = gobreaker.NewCircuitBreaker[*jason.Object](gobreaker.Settings{
			Name:        breakerName,
			MaxRequests: 1,
			Timeout:     cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, services.ErrNotFound)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				c.logger.Info("circuit breaker state change",
					logging.String("breaker", name),
					logging.String("from", from.String()),
					logging.String("to", to.String()),
				)
				c.metrics.BreakerState(name, stateValue(to))
			},
		})
	}
}

// New creates a proxy client.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "mdl", "new client", "base url required", nil)
	}
	client := &Client{
		baseURL:    baseURL,
		timeout:    10 * time.Second,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(client)
	}
	client.logger = logging.NewComponentLogger(client.logger, "mdl")
	if client.breaker != nil {
		client.metrics.BreakerState(breakerName, 0)
	}
	return client, nil
}

// Search returns the proxy's hits for query, or nil when the call fails.
func (c *Client) Search(ctx context.Context, query string) []Candidate {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	obj := c.call(ctx, "search", "/search/q/"+url.PathEscape(query))
	if obj == nil {
		return nil
	}
	candidates, err := parseSearch(obj)
	if err != nil {
		c.degrade(ctx, "search", query, services.Wrap(services.ErrUpstreamUnavailable, "mdl", "search", "unexpected payload", err))
		return nil
	}
	return candidates
}

// Details returns title metadata for key, or nil when unavailable.
func (c *Client) Details(ctx context.Context, key string) *Details {
	obj := c.call(ctx, "details", "/id/"+escapeSlug(key))
	if obj == nil {
		return nil
	}
	details, err := parseDetails(obj)
	if err != nil {
		c.degrade(ctx, "details", key, services.Wrap(services.ErrUpstreamUnavailable, "mdl", "details", "unexpected payload", err))
		return nil
	}
	return details
}

// Cast returns the grouped cast for key, or nil when unavailable.
func (c *Client) Cast(ctx context.Context, key string) *Cast {
	obj := c.call(ctx, "cast", "/id/"+escapeSlug(key)+"/cast")
	if obj == nil {
		return nil
	}
	cast, err := parseCast(obj)
	if err != nil {
		c.degrade(ctx, "cast", key, services.Wrap(services.ErrUpstreamUnavailable, "mdl", "cast", "unexpected payload", err))
		return nil
	}
	return cast
}

// Person returns the raw profile document for personKey, or nil when unavailable.
func (c *Client) Person(ctx context.Context, personKey string) *Person {
	obj := c.call(ctx, "person", "/people/"+escapeSlug(personKey))
	if obj == nil {
		return nil
	}
	data, err := obj.GetObject("data")
	if err != nil {
		c.degrade(ctx, "person", personKey, services.Wrap(services.ErrUpstreamUnavailable, "mdl", "person", "unexpected payload", err))
		return nil
	}
	payload, err := data.Marshal()
	if err != nil {
		c.degrade(ctx, "person", personKey, services.Wrap(services.ErrUpstreamUnavailable, "mdl", "person", "re-encode payload", err))
		return nil
	}
	return &Person{Key: personKey, Payload: payload}
}

// call performs one GET and returns the decoded body, or nil after logging
// why it could not.
func (c *Client) call(ctx context.Context, operation, path string) *jason.Object {
	var (
		obj *jason.Object
		err error
	)
	if c.breaker != nil {
		obj, err = c.breaker.Execute(func() (*jason.Object, error) {
			return c.fetch(ctx, operation, path)
		})
	} else {
		obj, err = c.fetch(ctx, operation, path)
	}

	switch {
	case err == nil:
		c.metrics.UpstreamRequest("mdl", operation, metrics.OutcomeSuccess)
		return obj
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		c.metrics.UpstreamRequest("mdl", operation, metrics.OutcomeRejected)
		c.logger.Debug("mdl call rejected by open circuit",
			logging.String("operation", operation),
			logging.String("path", path),
		)
		return nil
	case errors.Is(err, services.ErrNotFound):
		c.metrics.UpstreamRequest("mdl", operation, metrics.OutcomeMiss)
		c.logger.Debug("mdl resource not found",
			logging.String("operation", operation),
			logging.String("path", path),
		)
		return nil
	default:
		c.metrics.UpstreamRequest("mdl", operation, metrics.OutcomeFailure)
		c.degrade(ctx, operation, path, err)
		return nil
	}
}

func (c *Client) fetch(ctx context.Context, operation, path string) (*jason.Object, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "mdl", operation, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "mdl", operation, fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, services.Wrap(services.ErrNotFound, "mdl", operation, "proxy returned 404", nil)
	case resp.StatusCode != http.StatusOK:
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "mdl", operation, fmt.Sprintf("proxy returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	obj, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrUpstreamUnavailable, "mdl", operation, "decode proxy response", err)
	}
	return obj, nil
}

func (c *Client) degrade(ctx context.Context, operation, subject string, err error) {
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), "mdl call degraded to empty result", "mdl_call_failed",
		logging.String("operation", operation),
		logging.String("subject", subject),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check the proxy base_url and upstream availability"),
		logging.String(logging.FieldImpact, "enrichment fields left empty for this item"),
	)
}

func escapeSlug(slug string) string {
	parts := strings.Split(strings.Trim(strings.TrimSpace(slug), "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}
