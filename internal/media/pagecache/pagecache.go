// Package pagecache stores downloaded page images on disk.
//
// Layout is one directory per series, one per chapter under it, and one file
// per page: {seriesID}/{chapterID}/{pageIndex}.{ext}. Series ids contain a
// colon which keys stay out of paths via dirName.
package pagecache

import (
	"context"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/fetch"
)

const defaultMaxBytes = 10 * 1024 * 1024 * 1024 // 10GB

// Cache is the on-disk page image cache.
//
// Per-series locks serialize downloads and eviction for one series so a
// sweep never removes a directory mid-download.
type Cache struct {
	root     string
	maxBytes int64
	fetcher  *fetch.Client
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates the cache rooted at dir. maxBytes <= 0 selects the default
// budget.
func New(dir string, maxBytes int64, fetcher *fetch.Client, logger *slog.Logger) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "create cache directory")
	}
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		root:     dir,
		maxBytes: maxBytes,
		fetcher:  fetcher,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Root returns the cache directory.
func (c *Cache) Root() string {
	return c.root
}

// seriesLock returns the mutex guarding one series directory. Keyed by the
// directory name so download paths and eviction sweeps agree on the lock.
func (c *Cache) seriesLock(seriesID string) *sync.Mutex {
	key := dirName(seriesID)
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		c.locks[key] = lock
	}
	return lock
}

// dirName makes an id safe as a single path element.
func dirName(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ':', '/', '\\':
			return '_'
		}
		return r
	}, id)
}

// pagePath returns the cache path for a page, deriving the extension from
// the remote URL (".jpg" when the URL carries none).
func (c *Cache) pagePath(seriesID, chapterID string, index int, remoteURL string) string {
	ext := ".jpg"
	if u, err := url.Parse(remoteURL); err == nil {
		if e := filepath.Ext(u.Path); e != "" {
			ext = e
		}
	}
	return filepath.Join(c.root, dirName(seriesID), dirName(chapterID), strconv.Itoa(index)+ext)
}

// findCached looks for any cached file for the page regardless of extension.
func (c *Cache) findCached(seriesID, chapterID string, index int) (string, bool) {
	dir := filepath.Join(c.root, dirName(seriesID), dirName(chapterID))
	matches, err := filepath.Glob(filepath.Join(dir, strconv.Itoa(index)+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}

// IsCached reports whether a page image is already on disk.
func (c *Cache) IsCached(seriesID, chapterID string, index int) bool {
	_, ok := c.findCached(seriesID, chapterID, index)
	return ok
}

// ResolveURL returns the local file path when the page is cached, or the
// remote URL unchanged when it is not. A cache hit refreshes the series
// directory timestamp so eviction can order series by recency.
func (c *Cache) ResolveURL(seriesID, chapterID string, index int, remoteURL string) (location string, cached bool) {
	if path, ok := c.findCached(seriesID, chapterID, index); ok {
		c.touchSeries(seriesID)
		return path, true
	}
	return remoteURL, false
}

// touchSeries bumps the series directory mtime. Access ordering is kept in
// mtime rather than atime because noatime mounts are common.
func (c *Cache) touchSeries(seriesID string) {
	now := time.Now()
	if err := os.Chtimes(filepath.Join(c.root, dirName(seriesID)), now, now); err != nil && !os.IsNotExist(err) {
		c.logger.Debug("failed to touch series directory", "series_id", seriesID, "error", err)
	}
}

// Size walks the cache tree and returns total bytes used.
func (c *Cache) Size(ctx context.Context) (int64, error) {
	var total int64
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A concurrently evicted entry is not an error.
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeCacheIO, "measure cache size")
	}
	return total, nil
}

// SeriesSize returns bytes used by one series directory, zero when absent.
func (c *Cache) SeriesSize(seriesID string) int64 {
	var total int64
	filepath.WalkDir(filepath.Join(c.root, dirName(seriesID)), func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// RemoveSeries deletes every cached page for a series.
func (c *Cache) RemoveSeries(seriesID string) error {
	lock := c.seriesLock(seriesID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(filepath.Join(c.root, dirName(seriesID))); err != nil {
		return errors.Wrap(err, errors.CodeCacheIO, "remove series cache")
	}
	return nil
}

// Clear empties the whole cache.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheIO, "read cache root")
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(c.root, entry.Name())); err != nil {
			return errors.Wrap(err, errors.CodeCacheIO, "clear cache")
		}
	}
	return nil
}
