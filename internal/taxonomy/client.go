package taxonomy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/fieldlog/internal/conf"
	"github.com/tphakala/fieldlog/internal/errors"
	"github.com/tphakala/fieldlog/internal/httpclient"
	"github.com/tphakala/fieldlog/internal/logger"
	"github.com/tphakala/fieldlog/internal/model"
	"github.com/tphakala/fieldlog/internal/observability/metrics"
)

const service = "taxonomy"

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 4 << 20

// Config holds client settings
type Config struct {
	BaseURL    string
	TaxonGroup string // optional taxonGroups filter
	Timeout    time.Duration
	CacheTTL   time.Duration
	Transport  http.RoundTripper
	Metrics    *metrics.LookupMetrics
}

// ConfigFromSettings maps taxonomy settings onto a client Config.
func ConfigFromSettings(s conf.TaxonomySettings, m *metrics.LookupMetrics) Config {
	return Config{
		BaseURL:    s.BaseURL,
		TaxonGroup: s.TaxonGroup,
		Timeout:    s.Timeout,
		CacheTTL:   s.CacheTTL,
		Metrics:    m,
	}
}

// Client queries the species registry. Results are cached per term.
type Client struct {
	config     Config
	baseURL    *url.URL
	httpClient *httpclient.Client
	cache      *cache.Cache
	metrics    *metrics.LookupMetrics
	logger     logger.Logger
}

// NewClient creates a registry client.
func NewClient(config Config) (*Client, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	base, err := url.Parse(strings.TrimRight(config.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, errors.Newf("invalid taxonomy base url %q", config.BaseURL).
			Component(service).
			Category(errors.CategoryConfiguration).
			Build()
	}

	httpClient := httpclient.New(&httpclient.Config{
		DefaultTimeout: config.Timeout,
		UserAgent:      conf.DefaultUserAgent,
		Accept:         "application/json",
		Transport:      config.Transport,
	})
	httpClient.SetAfterResponseHook(func(_ *http.Request, _ *http.Response, _ error, d time.Duration) {
		config.Metrics.RecordDuration(service, d)
	})

	c := &Client{
		config:     config,
		baseURL:    base,
		httpClient: httpClient,
		cache:      cache.New(config.CacheTTL, config.CacheTTL*2),
		metrics:    config.Metrics,
		logger:     GetLogger(),
	}
	c.logger.Debug("taxonomy client initialized",
		logger.String("base_url", base.String()),
		logger.Duration("cache_ttl", config.CacheTTL))
	return c, nil
}

func cacheKey(term, group string) string {
	return strings.ToLower(term) + "|" + group
}

// Search returns taxa matching term. Failures are logged and yield an
// empty result; a species search never blocks the caller's flow.
func (c *Client) Search(ctx context.Context, term string) ([]model.Taxon, error) {
	taxa, err := c.Find(ctx, term)
	if err != nil {
		c.logger.Warn("species search failed",
			logger.String("term", term),
			logger.Error(err))
		return []model.Taxon{}, nil
	}
	return taxa, nil
}

// Find is Search with errors returned to the caller.
func (c *Client) Find(ctx context.Context, term string) ([]model.Taxon, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		c.metrics.RecordOutcome(service, metrics.LookupSkipped)
		return []model.Taxon{}, nil
	}

	key := cacheKey(term, c.config.TaxonGroup)
	if cached, found := c.cache.Get(key); found {
		if taxa, ok := cached.([]model.Taxon); ok {
			c.metrics.RecordOutcome(service, metrics.LookupHit)
			return cloneTaxa(taxa), nil
		}
	}

	taxa, err := c.fetch(ctx, term)
	if err != nil {
		c.metrics.RecordOutcome(service, metrics.LookupFailed)
		return nil, err
	}
	c.metrics.RecordOutcome(service, metrics.LookupOK)

	c.cache.Set(key, taxa, cache.DefaultExpiration)
	return cloneTaxa(taxa), nil
}

func cloneTaxa(taxa []model.Taxon) []model.Taxon {
	out := make([]model.Taxon, len(taxa))
	copy(out, taxa)
	return out
}

func (c *Client) searchURL(term string) string {
	u := *c.baseURL
	u.Path += "/taxon"
	q := url.Values{}
	q.Set("term", term)
	if c.config.TaxonGroup != "" {
		q.Set("taxonGroups", c.config.TaxonGroup)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) fetch(ctx context.Context, term string) ([]model.Taxon, error) {
	reqURL := c.searchURL(term)
	resp, cancel, err := c.httpClient.Get(ctx, reqURL)
	defer cancel()
	if err != nil {
		return nil, errors.New(fmt.Errorf("taxonomy request failed: %w", err)).
			Component(service).
			Category(errors.CategoryNetwork).
			NetworkContext(reqURL, c.config.Timeout).
			Build()
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", logger.Error(err))
		}
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("taxonomy API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body))).
			Component(service).
			Category(errors.CategoryLookup).
			Context("status_code", resp.StatusCode).
			Build()
	}

	var records []taxonRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&records); err != nil {
		return nil, errors.New(fmt.Errorf("failed to decode taxonomy response: %w", err)).
			Component(service).
			Category(errors.CategoryLookup).
			Build()
	}

	taxa := make([]model.Taxon, 0, len(records))
	for _, r := range records {
		taxa = append(taxa, r.toModel())
	}
	return taxa, nil
}

// ClearCache drops every cached search result.
func (c *Client) ClearCache() {
	c.cache.Flush()
}

// Close drops the cache and idle connections.
func (c *Client) Close() {
	c.cache.Flush()
	c.httpClient.Close()
}
