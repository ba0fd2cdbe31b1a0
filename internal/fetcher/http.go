// Package fetcher performs rate-limited HTTP retrieval with transport-level
// retries against the remote procurement catalog.
package fetcher

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/resilience"
)

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent   string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	RatePerSec  float64
}

// Client is an HTTP GET client that retries transport-level failures
// (connection, timeout, DNS) with linear backoff. Responses carrying an HTTP
// error status are returned as-is, never retried: the caller decides whether
// a 4xx/5xx stops the run.
type Client struct {
	http    *http.Client
	opts    Options
	limiter *rate.Limiter
}

// New creates a fetcher with the given options.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 40 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = 2 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "carbonscreen/1.0"
	}
	if opts.RatePerSec == 0 {
		opts.RatePerSec = 5
	}
	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
	}
}

// Get fetches rawURL with the given query parameters appended. The caller
// owns the response body and must inspect the status code.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %s", rawURL)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "fetch: rate limiter wait")
	}

	cfg := resilience.RetryConfig{
		MaxAttempts: c.opts.MaxRetries,
		BackoffBase: c.opts.BackoffBase,
		OnRetry: func(attempt int, err error) {
			zap.L().Warn("network error, retrying",
				zap.String("url", u.String()),
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", c.opts.MaxRetries),
				zap.Error(err),
			)
		},
	}

	resp, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetch: create request")
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			// Transport failures are retried; any returned status is not.
			return nil, resilience.NewTransientError(err)
		}
		return resp, nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: max retries exceeded for %s", u.String())
	}

	return resp, nil
}
