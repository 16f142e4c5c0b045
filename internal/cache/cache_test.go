package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://aeronet.gsfc.nasa.gov/cgi-bin/print_web_data_v3?site=Cart_Site&AOD20=1"

func newTestCache(t *testing.T, now *time.Time) *Cache {
	t.Helper()
	c, err := New(Options{
		Dir: t.TempDir(),
		TTL: time.Hour,
		Now: func() time.Time { return *now },
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutGet(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, &now)

	_, err := c.Get(testURL)
	assert.ErrorIs(t, err, ErrMiss)

	body := []byte("AERONET Version 3;\nDate(dd:mm:yyyy),AOD_500nm\n")
	require.NoError(t, c.Put(testURL, body))

	got, err := c.Get(testURL)
	require.NoError(t, err)
	assert.Equal(t, body, got)

	_, err = c.Get(testURL + "&day=2")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(t, &now)

	require.NoError(t, c.Put(testURL, []byte("body")))

	now = now.Add(59 * time.Minute)
	_, err := c.Get(testURL)
	assert.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = c.Get(testURL)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCorruptEntryIsMiss(t *testing.T) {
	now := time.Now()
	c := newTestCache(t, &now)

	path := c.path(testURL)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	_, err := c.Get(testURL)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestKeyIsStable(t *testing.T) {
	assert.Equal(t, Key(testURL), Key(testURL))
	assert.NotEqual(t, Key(testURL), Key(testURL+"&x=1"))
	assert.Len(t, Key(testURL), 64)
}

func TestNewRequiresDir(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}
