package aeronet

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/time/rate"

	"github.com/terradue/aeronet-go/catalog"
	"github.com/terradue/aeronet-go/client"
)

// Config contains configuration for a Searcher.
type Config struct {
	// BaseURL is the AERONET web service root (e.g., "https://aeronet.gsfc.nasa.gov").
	// OPTIONAL: Uses client.DefaultBaseURL if empty.
	BaseURL string

	// Registry resolves filter properties to query parameters.
	// OPTIONAL: Uses catalog.Default() (or catalog.DefaultHourly() with Hourly) if nil.
	Registry catalog.Registry

	// Hourly selects the default registry with hour precision date ranges.
	// OPTIONAL: Day precision if false. MUST NOT be combined with Registry.
	Hourly bool

	// HTTPClient performs requests.
	// OPTIONAL: client package default if nil.
	HTTPClient *http.Client

	// Trace logs every HTTP request and response line with headers.
	// OPTIONAL: Disabled if false.
	Trace bool

	// RateLimit bounds requests per second.
	// OPTIONAL: If 0, uses client.DefaultRateLimit. MUST NOT be negative.
	RateLimit rate.Limit

	// Retry sets the backoff policy for transient failures.
	// OPTIONAL: If zero, uses client.DefaultBackoff.
	Retry client.Backoff

	// CacheDir enables the on-disk response cache.
	// OPTIONAL: No caching if empty.
	CacheDir string

	// CacheTTL bounds the age of cached responses.
	// OPTIONAL: If 0, uses 24h. MUST NOT be negative.
	CacheTTL time.Duration

	// Allocator for Arrow memory management.
	// OPTIONAL: Uses memory.DefaultAllocator if nil.
	Allocator memory.Allocator

	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// Note: If LogLevel is specified, a new logger will be created with that level.
	Logger *slog.Logger

	// LogLevel sets the logging level.
	// OPTIONAL: If nil, uses Info level.
	// Valid values: slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError
	// If Logger is also provided, LogLevel is ignored (use pre-configured logger).
	LogLevel *slog.Level

	// Now returns the generation time stamped on catalog items.
	// OPTIONAL: Uses time.Now if nil.
	Now func() time.Time
}

// Standard errors returned by aeronet package.
var (
	// ErrInvalidConfig indicates Config validation failed.
	ErrInvalidConfig = errors.New("invalid searcher config")

	// ErrInvalidRequest indicates SearchRequest validation failed.
	ErrInvalidRequest = errors.New("invalid search request")
)

// validateConfig checks that Config fields are consistent.
func validateConfig(config Config) error {
	if config.Registry != nil && config.Hourly {
		return fmt.Errorf("hourly applies to the default registry only")
	}
	if config.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	if config.CacheTTL < 0 {
		return fmt.Errorf("cache TTL must not be negative")
	}
	return nil
}

// logger returns the configured logger, honoring LogLevel when no logger is given.
func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.LogLevel != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *c.LogLevel}))
	}
	return slog.Default()
}

// registry returns the configured or default registry.
func (c Config) registry() (catalog.Registry, error) {
	switch {
	case c.Registry != nil:
		return c.Registry, nil
	case c.Hourly:
		return catalog.DefaultHourly()
	default:
		return catalog.Default()
	}
}
