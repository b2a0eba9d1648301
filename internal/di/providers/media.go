package providers

import (
	"github.com/samber/do/v2"

	"github.com/yomihub/yomihub-server/internal/config"
	"github.com/yomihub/yomihub-server/internal/fetch"
	"github.com/yomihub/yomihub-server/internal/logger"
	"github.com/yomihub/yomihub-server/internal/media/images"
	"github.com/yomihub/yomihub-server/internal/media/pagecache"
)

// ProvidePageCache provides the bounded page image cache.
func ProvidePageCache(i do.Injector) (*pagecache.Cache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	fetcher := do.MustInvoke[*fetch.Client](i)

	cache, err := pagecache.New(cfg.PageCache.Dir, cfg.PageCache.MaxBytes, fetcher, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Page cache initialized", "dir", cfg.PageCache.Dir, "max_bytes", cfg.PageCache.MaxBytes)
	return cache, nil
}

// ProvideCoverStorage provides cover image storage.
func ProvideCoverStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return images.NewStorage(cfg.Data.CoversPath)
}

// ProvideImageProcessor provides the cover fetch/blurhash processor.
func ProvideImageProcessor(i do.Injector) (*images.Processor, error) {
	log := do.MustInvoke[*logger.Logger](i)
	fetcher := do.MustInvoke[*fetch.Client](i)
	storage := do.MustInvoke[*images.Storage](i)

	return images.NewProcessor(storage, fetcher, log.Logger), nil
}
