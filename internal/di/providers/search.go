package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/yomihub/yomihub-server/internal/config"
	"github.com/yomihub/yomihub-server/internal/logger"
	"github.com/yomihub/yomihub-server/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the bleve full-text index and wires it into
// the store so every save is indexed.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	index, err := search.NewIndex(search.Options{
		DataPath: cfg.Data.SearchPath,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	storeHandle.SetSearchIndexer(index)

	docCount, _ := index.DocumentCount() //nolint:errcheck // informational
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{Index: index}, nil
}

// ReindexIfNeeded rebuilds the search index from the catalog when the
// index is empty but the catalog is not. Runs after all services are up,
// typically following an index version bump.
func ReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, err := indexHandle.DocumentCount()
	if err != nil || docCount > 0 {
		return
	}

	ctx := context.Background()
	series, err := storeHandle.AllSeries(ctx)
	if err != nil || len(series) == 0 {
		return
	}

	log.Info("Reindexing catalog", "series", len(series))
	if err := indexHandle.IndexAll(ctx, series); err != nil {
		log.Error("Catalog reindex failed", "error", err)
	}
}
