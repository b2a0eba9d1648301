package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/yomihub/yomihub-server/internal/aggregate"
	"github.com/yomihub/yomihub-server/internal/config"
	"github.com/yomihub/yomihub-server/internal/fetch"
	"github.com/yomihub/yomihub-server/internal/logger"
	"github.com/yomihub/yomihub-server/internal/ratelimit"
	"github.com/yomihub/yomihub-server/internal/source"
	"github.com/yomihub/yomihub-server/internal/source/ehentai"
	"github.com/yomihub/yomihub-server/internal/source/hitomi"
	"github.com/yomihub/yomihub-server/internal/source/mangadex"
	"github.com/yomihub/yomihub-server/internal/source/nhentai"
	"github.com/yomihub/yomihub-server/internal/source/routing"
)

// ProvideRateLimiter provides the per-source request limiter.
func ProvideRateLimiter(i do.Injector) (*ratelimit.KeyedLimiter, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return ratelimit.New(cfg.Sources.DefaultInterval), nil
}

// ProvideFetchClient provides the shared rate-limited HTTP client.
func ProvideFetchClient(i do.Injector) (*fetch.Client, error) {
	log := do.MustInvoke[*logger.Logger](i)
	limiter := do.MustInvoke[*ratelimit.KeyedLimiter](i)
	return fetch.NewClient(limiter, log.Logger), nil
}

// ProvideRegistry provides the source registry with every adapter wired
// to the shared fetch client. Adapters that declare their own minimum
// request interval override the configured default.
func ProvideRegistry(i do.Injector) (*source.Registry, error) {
	log := do.MustInvoke[*logger.Logger](i)
	fetcher := do.MustInvoke[*fetch.Client](i)
	limiter := do.MustInvoke[*ratelimit.KeyedLimiter](i)

	registry := source.NewRegistry(
		mangadex.New(fetcher, log.Logger),
		nhentai.New(fetcher, log.Logger),
		hitomi.New(fetcher, log.Logger),
		ehentai.New(fetcher, log.Logger),
	)

	for _, info := range registry.Available(true) {
		if info.MinInterval > 0 {
			limiter.SetInterval(info.ID, info.MinInterval)
		}
	}

	log.Info("Source registry initialized", "sources", registry.IDs())
	return registry, nil
}

// RoutingTableHandle wraps the routing table with its watch lifecycle.
type RoutingTableHandle struct {
	*routing.Table
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *RoutingTableHandle) Shutdown() error {
	if h.cancel != nil {
		h.cancel()
	}
	return nil
}

// ProvideRoutingTable provides the category routing table. With no file
// configured, every category falls through to all sources.
func ProvideRoutingTable(i do.Injector) (*RoutingTableHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Sources.RoutesFile == "" {
		return &RoutingTableHandle{Table: routing.Static(nil, nil)}, nil
	}

	table, err := routing.Load(cfg.Sources.RoutesFile, log.Logger)
	if err != nil {
		return nil, err
	}

	// Edits to the file take effect without a restart.
	ctx, cancel := context.WithCancel(context.Background())
	if err := table.Watch(ctx); err != nil {
		cancel()
		return nil, err
	}

	log.Info("Routing table loaded", "path", cfg.Sources.RoutesFile, "categories", len(table.Categories()))
	return &RoutingTableHandle{Table: table, cancel: cancel}, nil
}

// ProvideOrchestrator provides the catalog fan-out orchestrator.
func ProvideOrchestrator(i do.Injector) (*aggregate.Orchestrator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	registry := do.MustInvoke[*source.Registry](i)
	routes := do.MustInvoke[*RoutingTableHandle](i)

	return aggregate.NewOrchestrator(registry, routes.Table, log.Logger, cfg.Sources.GlobalTimeout), nil
}
