// Package geocode suggests place names for coordinates through a
// Nominatim-compatible reverse geocoding service.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/time/rate"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/httpclient"
	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/model"
	"github.com/tphakala/fieldlog/internal/observability/metrics"
)

const service = "geocode"

// Place is a reverse geocoding result. Name is a short suggestion for a
// location name; DisplayName is the full address line.
type Place struct {
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
}

// Empty reports whether nothing was found.
func (p Place) Empty() bool {
	return p.DisplayName == "" && p.Name == ""
}

type reverseResponse struct {
	DisplayName string            `json:"display_name"`
	Name        string            `json:"name"`
	Address     map[string]string `json:"address"`
	Error       string            `json:"error"`
}

// Config holds client settings
type Config struct {
	BaseURL           string
	Language          language.Tag
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Transport         http.RoundTripper
	Metrics           *metrics.LookupMetrics
}

// ConfigFromSettings maps geocode settings onto a client Config. An
// unparseable language falls back to Norwegian.
func ConfigFromSettings(s conf.GeocodeSettings, m *metrics.LookupMetrics) Config {
	tag, err := language.Parse(s.Language)
	if err != nil {
		GetLogger().Warn("invalid geocode language, using Norwegian",
			logger.String("language", s.Language))
		tag = language.Norwegian
	}
	return Config{
		BaseURL:           s.BaseURL,
		Language:          tag,
		UserAgent:         s.UserAgent,
		Timeout:           s.Timeout,
		RequestsPerSecond: s.RequestsPerSecond,
		Metrics:           m,
	}
}

// Client performs reverse geocoding.
type Client struct {
	config     Config
	baseURL    *url.URL
	httpClient *httpclient.Client
	limiter    *rate.Limiter
	metrics    *metrics.LookupMetrics
	logger     logger.Logger
}

// NewClient creates a reverse geocoding client.
func NewClient(config Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf("invalid geocode base url %q", config.BaseURL).
			Component(service).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if strings.TrimSpace(config.UserAgent) == "" {
		config.UserAgent = conf.DefaultUserAgent
	}
	if config.Language == language.Und {
		config.Language = language.Norwegian
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 1
	}
	httpClient := httpclient.New(&httpclient.Config{
		DefaultTimeout: config.Timeout,
		UserAgent:      config.UserAgent,
		Accept:         "application/json",
		Transport:      config.Transport,
	})
	httpClient.SetAfterResponseHook(func(_ *http.Request, _ *http.Response, _ error, d time.Duration) {
		config.Metrics.RecordDuration(service, d)
	})
	return &Client{
		config:     config,
		baseURL:    base,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		metrics:    config.Metrics,
		logger:     GetLogger(),
	}, nil
}

// GetLogger returns the geocode module logger
func GetLogger() logger.Logger {
	return logger.Global().Module(service)
}

// Reverse returns the place at p. Failures are logged and give an empty
// Place; a missing name never blocks saving an observation.
func (c *Client) Reverse(ctx context.Context, p model.Point) (Place, error) {
	place, err := c.Lookup(ctx, p)
	if err != nil {
		c.logger.Warn("reverse geocoding failed", logger.Error(err))
		return Place{}, nil
	}
	return place, nil
}

// Lookup is Reverse with errors returned to the caller.
func (c *Client) Lookup(ctx context.Context, p model.Point) (Place, error) {
	if err := p.Validate(); err != nil {
		c.metrics.RecordOutcome(service, metrics.LookupSkipped)
		return Place{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.limiter.Wait(reqCtx); err != nil {
		c.metrics.RecordOutcome(service, metrics.LookupFailed)
		return Place{}, errors.New(fmt.Errorf("geocode rate limiter: %w", err)).
			Component(service).
			Category(errors.CategoryTimeout).
			Build()
	}

	place, err := c.fetch(reqCtx, p)
	if err != nil {
		c.metrics.RecordOutcome(service, metrics.LookupFailed)
		return Place{}, err
	}
	c.metrics.RecordOutcome(service, metrics.LookupOK)
	return place, nil
}

func (c *Client) reverseURL(p model.Point) string {
	u := *c.baseURL
	u.Path += "/reverse"
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(p.Lng, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("accept-language", c.config.Language.String())
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetch(ctx context.Context, p model.Point) (Place, error) {
	reqURL := c.reverseURL(p)
	resp, cancel, err := c.httpClient.Get(ctx, reqURL)
	defer cancel()
	if err != nil {
		return Place{}, errors.New(fmt.Errorf("geocode request failed: %w", err)).
			Component(service).
			Category(errors.CategoryNetwork).
			NetworkContext(reqURL, c.config.Timeout).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Place{}, errors.Newf("geocode API returned status %d", resp.StatusCode).
			Component(service).
			Category(errors.CategoryLookup).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var body reverseResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return Place{}, errors.New(fmt.Errorf("failed to decode geocode response: %w", err)).
			Component(service).
			Category(errors.CategoryLookup).
			Build()
	}
	// open water and other unaddressable points
	if body.Error != "" {
		return Place{}, nil
	}
	return Place{DisplayName: body.DisplayName, Name: suggestName(body)}, nil
}

// suggestName picks the most specific short name from a response.
func suggestName(r reverseResponse) string {
	if r.Name != "" {
		return r.Name
	}
	for _, key := range []string{"road", "hamlet", "village", "suburb", "town", "city", "municipality"} {
		if v := r.Address[key]; v != "" {
			return v
		}
	}
	if first, _, _ := strings.Cut(r.DisplayName, ","); first != "" {
		return strings.TrimSpace(first)
	}
	return ""
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.Close()
}
