// Package client provides the Ishmael Insights HTTP client with quota
// tracking, response caching, and typed operations on top of pkg/request.
package client

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/ishmael-client/pkg/cache"
	"github.com/Sternrassler/ishmael-client/pkg/logging"
	"github.com/Sternrassler/ishmael-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Prometheus metrics for client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ishmael_requests_total",
		Help: "Total Ishmael API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ishmael_request_duration_seconds",
		Help:    "Ishmael API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ishmael_errors_total",
		Help: "Total Ishmael API errors by class",
	}, []string{"class"})

	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ishmael_pages_fetched_total",
		Help: "Total pages fetched by paginated iterators, by operation",
	}, []string{"operation"})
)

const (
	// DefaultBaseURL is the public Ishmael Insights host.
	DefaultBaseURL = "https://ishmaelinsights.com"

	// DefaultUserAgent identifies this client.
	DefaultUserAgent = "ishmael-client-go/0.1.0"

	// DefaultTimeout bounds a single HTTP round-trip.
	DefaultTimeout = 30 * time.Second

	apiPrefix = "/api/v1"
)

// ErrorClass represents a classification of failed requests.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Config holds the client configuration.
type Config struct {
	// APIKey is sent as the x-api-key header (required).
	APIKey string

	// BaseURL of the service. "/api/v1" is appended unless already present.
	BaseURL string

	UserAgent string

	// Timeout applies to the internally created HTTP client only.
	Timeout time.Duration

	// HTTPClient overrides the internally created HTTP client.
	HTTPClient *http.Client

	// Redis enables response caching and shared quota tracking. Optional.
	Redis *redis.Client

	// CacheTTL is the freshness given to responses without caching headers.
	CacheTTL time.Duration

	// QuotaThreshold blocks requests when fewer requests than this remain.
	QuotaThreshold int
}

// DefaultConfig returns a configuration for the public API.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:         apiKey,
		BaseURL:        DefaultBaseURL,
		UserAgent:      DefaultUserAgent,
		Timeout:        DefaultTimeout,
		CacheTTL:       cache.DefaultTTL,
		QuotaThreshold: ratelimit.QuotaThresholdCritical,
	}
}

// Client is the Ishmael Insights API client.
type Client struct {
	httpClient *http.Client
	root       string
	rootPath   string
	scope      string
	cache      *cache.Manager
	quota      *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", cfg.BaseURL)
	}

	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}

	logger := logging.NewLogger("ishmael-client")

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	c := &Client{
		httpClient: httpClient,
		root:       APIRoot(cfg.BaseURL),
		rootPath:   rootPath(APIRoot(cfg.BaseURL)),
		scope:      cache.ScopeFor(cfg.APIKey),
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		th := ratelimit.DefaultThresholds()
		if cfg.QuotaThreshold > 0 {
			th.Critical = cfg.QuotaThreshold
			if th.Warning < th.Critical {
				th.Warning = th.Critical
			}
		}
		c.quota = ratelimit.NewTracker(cfg.Redis, c.scope, th, logger)
		cacheCfg := cache.DefaultConfig()
		cacheCfg.DefaultTTL = cfg.CacheTTL
		c.cache = cache.NewManager(cfg.Redis, cacheCfg)
	}

	return c, nil
}

// APIRoot returns base with any trailing slash removed and "/api/v1"
// appended unless it already ends with it.
func APIRoot(base string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, apiPrefix) {
		return base
	}
	return base + apiPrefix
}

// Root returns the API root all request paths are joined onto.
func (c *Client) Root() string {
	return c.root
}

// Do performs an HTTP request with quota tracking, caching, and the
// authentication headers. Transport errors are returned unmodified.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := strings.TrimPrefix(req.URL.Path, c.rootPath)

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("x-api-key", c.config.APIKey)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	// Cache lookup, GET only.
	var cacheKey cache.CacheKey
	var cachedEntry *cache.CacheEntry
	useCache := c.cache != nil && req.Method == http.MethodGet
	if useCache {
		cacheKey = cache.CacheKey{
			Endpoint:    endpoint,
			QueryParams: req.URL.Query(),
			Scope:       c.scope,
		}

		entry, err := c.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			cachedEntry = entry
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}

		if cachedEntry != nil && !cachedEntry.IsExpired() {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", cachedEntry.TTL()).
				Msg("Serving fresh cache entry")
			requestsTotal.WithLabelValues(endpoint, "cache_hit").Inc()
			return cache.EntryToResponse(cachedEntry), nil
		}

		if cache.ShouldMakeConditionalRequest(cachedEntry) {
			cache.AddConditionalHeaders(req, cachedEntry)
			cache.ConditionalRequestsSent.Inc()
			c.logger.Debug().
				Str("endpoint", endpoint).
				Str("etag", cachedEntry.ETag).
				Msg("Making conditional request")
		}
	}

	if c.quota != nil {
		allowed, err := c.quota.ShouldAllowRequest(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, err
		case err != nil:
			c.logger.Warn().Err(err).Msg("Quota check failed, continuing without it")
		case !allowed:
			c.logger.Warn().Str("endpoint", endpoint).Msg("Request blocked by quota tracker")
			requestsTotal.WithLabelValues(endpoint, "quota_blocked").Inc()
			return nil, fmt.Errorf("%s %s: %w", req.Method, endpoint, ratelimit.ErrQuotaExhausted)
		}
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		errClass := c.classifyError(nil, err)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		c.logger.Error().Err(err).Str("endpoint", endpoint).Msg("HTTP request failed")
		return nil, err
	}

	if c.quota != nil {
		if err := c.quota.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
		}
	}

	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		c.logger.Debug().Str("endpoint", endpoint).Msg("304 Not Modified - using cache")
		cache.NotModifiedResponses.Inc()

		newExpires := cache.FreshUntil(resp.Header, c.cache.DefaultTTL())
		if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
		}
		cachedEntry.Expires = newExpires

		resp.Body.Close()
		return cache.EntryToResponse(cachedEntry), nil
	}

	if resp.StatusCode >= 400 {
		errClass := c.classifyError(resp, nil)
		errorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Request error")
		return resp, nil
	}

	if useCache && cache.Cacheable(resp) {
		entry, err := cache.ResponseToEntry(resp, c.cache.DefaultTTL())
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		} else {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Cached response")
		}
	}

	return resp, nil
}

// classifyError categorizes a failed request for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}
	return classifyStatus(resp.StatusCode)
}

func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

func rootPath(root string) string {
	u, err := url.Parse(root)
	if err != nil {
		return ""
	}
	return u.Path
}

// Cache returns the response cache, or nil when no Redis is configured.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}

// Quota returns the quota tracker, or nil when no Redis is configured.
func (c *Client) Quota() *ratelimit.Tracker {
	return c.quota
}

// Close releases idle connections. The Redis client is owned by the caller.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
