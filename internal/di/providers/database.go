package providers

import (
	"github.com/samber/do/v2"

	"github.com/yomihub/yomihub-server/internal/config"
	"github.com/yomihub/yomihub-server/internal/logger"
	"github.com/yomihub/yomihub-server/internal/store"
	"github.com/yomihub/yomihub-server/internal/store/statsdb"
	"github.com/yomihub/yomihub-server/internal/tags"
)

// StoreHandle wraps the catalog store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the badger-backed catalog store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := store.New(cfg.Data.StorePath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Catalog store initialized", "path", cfg.Data.StorePath)
	return &StoreHandle{Store: db}, nil
}

// StatsHandle wraps the stats database with shutdown capability.
type StatsHandle struct {
	*statsdb.Store
}

// Shutdown implements do.Shutdownable.
func (h *StatsHandle) Shutdown() error {
	return h.Close()
}

// ProvideStats provides the SQLite view-count and scrape-run store.
func ProvideStats(i do.Injector) (*StatsHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	db, err := statsdb.Open(cfg.Data.StatsPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Stats database initialized", "path", cfg.Data.StatsPath)
	return &StatsHandle{Store: db}, nil
}

// TagsHandle wraps the tag index with shutdown capability.
type TagsHandle struct {
	*tags.Index
}

// Shutdown implements do.Shutdownable.
func (h *TagsHandle) Shutdown() error {
	return h.Close()
}

// ProvideTags provides the badger-backed tag index.
func ProvideTags(i do.Injector) (*TagsHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	idx, err := tags.New(cfg.Data.TagsPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Tag index initialized", "path", cfg.Data.TagsPath)
	return &TagsHandle{Index: idx}, nil
}
