// Package routing maps content categories to ordered lists of source IDs.
// The table lives in a JSON file so deployments can reroute categories
// without a rebuild; edits are picked up live via fsnotify.
package routing

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/yomihub/yomihub-server/internal/errors"
)

// Route is one category's source assignment. Order matters; the
// orchestrator queries sources in the listed order.
type Route struct {
	Sources []string `json:"sources"`
	Adult   bool     `json:"adult,omitzero"`
}

// tableFile is the on-disk shape of the routing table.
type tableFile struct {
	Categories map[string]Route `json:"categories"`
	Default    []string         `json:"default"`
}

// Table resolves categories to source IDs. Safe for concurrent use; a
// reload swaps the whole snapshot under the lock.
type Table struct {
	mu     sync.RWMutex
	path   string
	logger *slog.Logger

	categories map[string]Route
	fallback   []string
}

// Load reads the routing table from path.
func Load(path string, logger *slog.Logger) (*Table, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	t := &Table{path: path, logger: logger}
	if err := t.reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Static builds an in-memory table, for tests and embedded defaults.
func Static(categories map[string]Route, fallback []string) *Table {
	return &Table{
		logger:     slog.New(slog.DiscardHandler),
		categories: categories,
		fallback:   fallback,
	}
}

func (t *Table) reload() error {
	data, err := os.ReadFile(t.path)
	if err != nil {
		return errors.Wrapf(err, errors.CodeCacheIO, "read routing table %s", t.path)
	}

	var file tableFile
	if err := json.Unmarshal(data, &file); err != nil {
		return errors.Wrapf(err, errors.CodeParse, "parse routing table %s", t.path)
	}

	t.mu.Lock()
	t.categories = file.Categories
	t.fallback = file.Default
	t.mu.Unlock()
	return nil
}

// Resolve returns the source IDs assigned to a category, falling back to
// the default list for unknown categories. ok reports whether the
// category was explicitly routed.
func (t *Table) Resolve(category string) (ids []string, adult bool, ok bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if route, found := t.categories[category]; found {
		return append([]string(nil), route.Sources...), route.Adult, true
	}
	return append([]string(nil), t.fallback...), false, false
}

// Categories lists the explicitly routed category names.
func (t *Table) Categories() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.categories))
	for name := range t.categories {
		names = append(names, name)
	}
	return names
}

// Watch reloads the table whenever the file changes, until ctx is done.
// Editors replace files by rename, so the parent directory is watched
// and events filtered by name. The watch is registered before Watch
// returns; the event loop runs in its own goroutine. A reload failure
// keeps the previous snapshot and logs the error.
func (t *Table) Watch(ctx context.Context) error {
	if t.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "create routing watcher")
	}

	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		watcher.Close()
		return errors.Wrapf(err, errors.CodeInternal, "watch %s", filepath.Dir(t.path))
	}

	go t.watchLoop(ctx, watcher)
	return nil
}

func (t *Table) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	base := filepath.Base(t.path)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
				continue
			}
			if err := t.reload(); err != nil {
				t.logger.Error("routing table reload failed", "path", t.path, "error", err)
				continue
			}
			t.logger.Info("routing table reloaded", "path", t.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			t.logger.Warn("routing watcher error", "error", err)
		}
	}
}
