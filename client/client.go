// Package client executes compiled queries against the AERONET v3 web service.
//
// Requests are rate limited, retried with exponential backoff on transient
// failures, optionally traced through slog and optionally served from an
// on-disk response cache.
//
// Basic Usage:
//
//	c, err := client.New(client.Options{Logger: logger})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	body, err := c.Search(ctx, query)
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/terradue/aeronet-go/filter"
	"github.com/terradue/aeronet-go/internal/cache"
)

const (
	// DefaultBaseURL is the public AERONET endpoint.
	DefaultBaseURL = "https://aeronet.gsfc.nasa.gov"

	// SearchPath is the data download service path.
	SearchPath = "/cgi-bin/print_web_data_v3"

	// StationsPath is the extended site inventory.
	StationsPath = "/aeronet_locations_extended_v3.txt"

	// DefaultRateLimit is the default number of requests per second.
	DefaultRateLimit = rate.Limit(2)

	defaultUserAgent = "aeronet-go"
)

// Options configures a Client.
type Options struct {
	// BaseURL of the web service.
	// OPTIONAL: defaults to DefaultBaseURL.
	BaseURL string

	// HTTPClient performs requests.
	// OPTIONAL: defaults to a client with a 5 minute timeout.
	HTTPClient *http.Client

	// Logger for request diagnostics.
	// OPTIONAL: defaults to slog.Default().
	Logger *slog.Logger

	// Trace logs request and response lines and headers.
	// OPTIONAL: defaults to false.
	Trace bool

	// RateLimit bounds outgoing requests per second. Use rate.Inf to disable.
	// OPTIONAL: defaults to DefaultRateLimit with a burst of 1.
	RateLimit rate.Limit

	// Retry policy for network errors, 429 and 5xx responses.
	// OPTIONAL: defaults to DefaultBackoff.
	Retry Backoff

	// CacheDir enables the response cache.
	// OPTIONAL: no caching when empty.
	CacheDir string

	// CacheTTL bounds the age of cached responses.
	// OPTIONAL: defaults to cache.DefaultTTL.
	CacheTTL time.Duration

	// UserAgent header value.
	// OPTIONAL: defaults to "aeronet-go".
	UserAgent string
}

// Client issues GET requests to the web service. Safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	logger    *slog.Logger
	limiter   *rate.Limiter
	retry     Backoff
	cache     *cache.Cache
	userAgent string
}

// New creates a client from opts.
func New(opts Options) (*Client, error) {
	c := &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		logger:    opts.Logger,
		retry:     opts.Retry,
		userAgent: opts.UserAgent,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.retry == (Backoff{}) {
		c.retry = DefaultBackoff
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}

	limit := opts.RateLimit
	if limit == 0 {
		limit = DefaultRateLimit
	}
	c.limiter = rate.NewLimiter(limit, 1)

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Minute}
	}
	if opts.Trace {
		traced := *hc
		traced.Transport = newTracingTransport(hc.Transport, c.logger)
		hc = &traced
	}
	c.http = hc

	if opts.CacheDir != "" {
		rc, err := cache.New(cache.Options{Dir: opts.CacheDir, TTL: opts.CacheTTL, Logger: c.logger})
		if err != nil {
			return nil, err
		}
		c.cache = rc
	}

	return c, nil
}

// BaseURL returns the service root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SearchURL renders the full request URL for q. No network I/O.
func (c *Client) SearchURL(q *filter.Query) string {
	return SearchURL(c.baseURL, q)
}

// SearchURL renders <baseURL><SearchPath>?<q.Encode()>.
func SearchURL(baseURL string, q *filter.Query) string {
	u := strings.TrimRight(baseURL, "/") + SearchPath
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}
	return u
}

// Search executes q and returns the raw CSV body.
func (c *Client) Search(ctx context.Context, q *filter.Query) ([]byte, error) {
	return c.fetch(ctx, c.SearchURL(q))
}

// Stations downloads the extended site inventory.
func (c *Client) Stations(ctx context.Context) ([]byte, error) {
	return c.fetch(ctx, c.baseURL+StationsPath)
}

// Close releases the response cache, if any.
func (c *Client) Close() error {
	if c.cache != nil {
		return c.cache.Close()
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	if c.cache != nil {
		body, err := c.cache.Get(url)
		if err == nil {
			c.logger.Info("Serving response from cache", "url", url)
			return body, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.Warn("Cache lookup failed", "url", url, "error", err)
		}
	}

	var body []byte
	err := c.retry.Retry(ctx, func(attempt int) (bool, error) {
		if attempt > 0 {
			c.logger.Warn("Retrying request", "url", url, "attempt", attempt+1)
		}
		var terr *TransportError
		body, terr = c.get(ctx, url)
		if terr != nil {
			return terr.Retryable, terr
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Put(url, body); err != nil {
			c.logger.Warn("Failed to store response in cache", "url", url, "error", err)
		}
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, *TransportError) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Method: http.MethodGet, URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{Method: http.MethodGet, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/csv, text/plain, */*")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{
			Method:    http.MethodGet,
			URL:       url,
			Retryable: ctx.Err() == nil,
			Err:       err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{
			Method:    http.MethodGet,
			URL:       url,
			Retryable: ctx.Err() == nil,
			Err:       fmt.Errorf("read body: %w", err),
		}
	}

	if resp.StatusCode >= 300 {
		return nil, &TransportError{
			Method:     http.MethodGet,
			URL:        url,
			StatusCode: resp.StatusCode,
			Retryable:  retryableStatus(resp.StatusCode),
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	return body, nil
}
