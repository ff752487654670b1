package api

import (
	"log/slog"
	"net/http"
	"time"
)

// Default client settings. DefaultRateLimit per DefaultRateWindow matches the
// public API tier.
const (
	DefaultRateLimit  = 40
	DefaultRateWindow = 60 * time.Second
	DefaultVsCurrency = "usd"
	DefaultPerPage    = 250
)

// Observer receives per-request measurements. metrics.Recorder implements it.
type Observer interface {
	ObserveRequest(statusCode int)
	ObserveRateLimitWait(d time.Duration)
	ObservePage(records int)
}

type noopObserver struct{}

func (noopObserver) ObserveRequest(int)                 {}
func (noopObserver) ObserveRateLimitWait(time.Duration) {}
func (noopObserver) ObservePage(int)                    {}

// Client provides rate-limited access to the CoinGecko REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *SlidingWindow
	observer   Observer

	maxRetries   int
	retryBackoff time.Duration

	vsCurrency string
	perPage    int
	maxPages   int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		limiter:      NewSlidingWindow(DefaultRateLimit, DefaultRateWindow),
		observer:     noopObserver{},
		maxRetries:   3,
		retryBackoff: time.Second,
		vsCurrency:   DefaultVsCurrency,
		perPage:      DefaultPerPage,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets how often a 429 response is retried and the initial backoff.
func WithRetries(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = retries
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit allows limit calls per sliding window.
func WithRateLimit(limit int, window time.Duration) ClientOption {
	return func(c *Client) {
		c.limiter = NewSlidingWindow(limit, window)
	}
}

// WithRateLimiter shares an existing limiter.
func WithRateLimiter(l *SlidingWindow) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithPaging sets the markets quote currency, page size and page cap (0 = none).
func WithPaging(vsCurrency string, perPage, maxPages int) ClientOption {
	return func(c *Client) {
		c.vsCurrency = vsCurrency
		c.perPage = perPage
		c.maxPages = maxPages
	}
}

// WithObserver sets the request observer.
func WithObserver(o Observer) ClientOption {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}
