package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tickerfeed/internal/common"
	"github.com/ternarybob/tickerfeed/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds every request, connect through body read.
	DefaultTimeout = 10 * time.Second

	// maxBodyBytes caps how much of a page is read.
	maxBodyBytes = 8 << 20
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Client performs browser-like GET requests against public pages.
// It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithRateLimit limits requests per second. Zero or less disables limiting.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = nil
			return
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client with a 10s timeout, the default browser User-Agent and no rate limit.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		userAgent:  common.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = common.GetLogger()
	}

	return c
}

// NewFromConfig creates a Client from the [fetcher] section.
func NewFromConfig(config *common.FetcherConfig, logger arbor.ILogger) *Client {
	return New(
		WithUserAgent(config.UserAgent),
		WithTimeout(config.RequestTimeout.D()),
		WithRateLimit(config.RateLimit),
		WithLogger(logger),
	)
}

// GetDocument fetches url and parses the body as HTML.
// Transport failures are returned wrapped; non-2xx responses return *StatusError.
func (c *Client) GetDocument(ctx context.Context, url string) (*goquery.Document, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	c.logger.Debug().Str("url", url).Msg("HTTP GET")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return doc, nil
}

// AsFetchError tags an error from GetDocument as a network or HTTP status failure.
func AsFetchError(op, ticker, url string, err error) *models.FetchError {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		fe := models.NewFetchError(models.FailureHTTPStatus, op, ticker, "", nil)
		fe.URL = url
		fe.StatusCode = statusErr.StatusCode
		return fe
	}
	fe := models.NewFetchError(models.FailureNetwork, op, ticker, "", err)
	fe.URL = url
	return fe
}
