// Package cache stores web service responses on disk, keyed by request URL.
//
// Entries are MessagePack envelopes compressed with ZStandard. Because compiled
// queries render parameters in a fixed order, equal filters map to equal URLs
// and therefore to the same entry.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/terradue/aeronet-go/internal/serialize"
)

// ErrMiss is returned by Get when no fresh entry exists for a URL.
var ErrMiss = errors.New("cache miss")

// DefaultTTL is used when Options.TTL is zero.
const DefaultTTL = 24 * time.Hour

// Options configures a Cache.
type Options struct {
	// Dir is the cache directory. Created on first use.
	// REQUIRED.
	Dir string

	// TTL bounds the age of entries returned by Get.
	// OPTIONAL: defaults to DefaultTTL.
	TTL time.Duration

	// Logger for cache diagnostics.
	// OPTIONAL: defaults to slog.Default().
	Logger *slog.Logger

	// Now returns the current time.
	// OPTIONAL: defaults to time.Now.
	Now func() time.Time
}

// Entry is the stored envelope.
type Entry struct {
	URL       string    `msgpack:"url"`
	FetchedAt time.Time `msgpack:"fetched_at"`
	Body      []byte    `msgpack:"body"`
}

// Cache is a file-backed response cache. Safe for concurrent use.
type Cache struct {
	dir    string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
	codec  *serialize.Codec
}

// New creates a cache rooted at opts.Dir.
func New(opts Options) (*Cache, error) {
	if opts.Dir == "" {
		return nil, errors.New("cache: directory is required")
	}

	codec, err := serialize.NewCodec()
	if err != nil {
		return nil, err
	}

	c := &Cache{
		dir:    opts.Dir,
		ttl:    opts.TTL,
		logger: opts.Logger,
		now:    opts.Now,
		codec:  codec,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// Key returns the entry key for a URL: the hex SHA-256 of the URL.
func Key(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) path(url string) string {
	key := Key(url)
	return filepath.Join(c.dir, key[:2], key+".msgpack.zst")
}

// Get returns the cached body for url, or ErrMiss when absent, expired or unreadable.
func (c *Cache) Get(url string) ([]byte, error) {
	data, err := os.ReadFile(c.path(url))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: read entry: %w", err)
	}

	var e Entry
	if err := c.codec.Unmarshal(data, &e); err != nil {
		c.logger.Warn("Discarding unreadable cache entry", "url", url, "error", err)
		return nil, ErrMiss
	}
	if e.URL != url {
		// hash collision or foreign file
		return nil, ErrMiss
	}
	if age := c.now().Sub(e.FetchedAt); age > c.ttl {
		c.logger.Debug("Cache entry expired", "url", url, "age", age)
		return nil, ErrMiss
	}

	c.logger.Debug("Cache hit", "url", url, "fetched_at", e.FetchedAt)
	return e.Body, nil
}

// Put stores body for url. The entry is written to a temporary file and renamed
// into place so readers never observe a partial entry.
func (c *Cache) Put(url string, body []byte) error {
	data, err := c.codec.Marshal(Entry{URL: url, FetchedAt: c.now().UTC(), Body: body})
	if err != nil {
		return fmt.Errorf("cache: encode entry: %w", err)
	}

	path := c.path(url)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".entry-*")
	if err != nil {
		return fmt.Errorf("cache: create entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: write entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("cache: commit entry: %w", err)
	}
	return nil
}

// Close releases codec resources.
func (c *Cache) Close() error {
	return c.codec.Close()
}
