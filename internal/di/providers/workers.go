package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/yomihub/yomihub-server/internal/config"
	"github.com/yomihub/yomihub-server/internal/library"
	"github.com/yomihub/yomihub-server/internal/logger"
	"github.com/yomihub/yomihub-server/internal/media/images"
	"github.com/yomihub/yomihub-server/internal/media/pagecache"
	"github.com/yomihub/yomihub-server/internal/scrape"
	"github.com/yomihub/yomihub-server/internal/source"
)

// ScraperHandle owns the periodic rescan ticker.
type ScraperHandle struct {
	*scrape.Scraper
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *ScraperHandle) Shutdown() error {
	if h.cancel != nil {
		h.cancel()
	}
	return nil
}

// ProvideScraper provides the full-rescan worker and starts its ticker
// when an interval is configured.
func ProvideScraper(i do.Injector) (*ScraperHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	registry := do.MustInvoke[*source.Registry](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	statsHandle := do.MustInvoke[*StatsHandle](i)

	scraper := scrape.New(registry, storeHandle.Store, statsHandle.Store, log.Logger, &scrape.Options{
		PageLimit:    cfg.Scraper.PageLimit,
		Pages:        cfg.Scraper.Pages,
		WithChapters: cfg.Scraper.WithChapters,
	})

	handle := &ScraperHandle{Scraper: scraper}
	if cfg.Scraper.Interval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		handle.cancel = cancel
		scraper.Start(ctx, cfg.Scraper.Interval)
		log.Info("Periodic rescan enabled", "interval", cfg.Scraper.Interval)
	}
	return handle, nil
}

// ProvideLibrary provides the self-hosted series service.
func ProvideLibrary(i do.Injector) (*library.Service, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	tagsHandle := do.MustInvoke[*TagsHandle](i)
	pages := do.MustInvoke[*pagecache.Cache](i)
	covers := do.MustInvoke[*images.Storage](i)

	return library.NewService(storeHandle.Store, pages, covers, tagsHandle.Index, log.Logger), nil
}
