// Package di wires the application together using samber/do.
package di

import (
	"github.com/samber/do/v2"

	"github.com/yomihub/yomihub-server/internal/di/providers"
)

// NewContainer creates and configures the dependency injection container.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideStats)
	do.Provide(injector, providers.ProvideTags)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Sources
	do.Provide(injector, providers.ProvideRateLimiter)
	do.Provide(injector, providers.ProvideFetchClient)
	do.Provide(injector, providers.ProvideRegistry)
	do.Provide(injector, providers.ProvideRoutingTable)
	do.Provide(injector, providers.ProvideOrchestrator)

	// Media
	do.Provide(injector, providers.ProvidePageCache)
	do.Provide(injector, providers.ProvideCoverStorage)
	do.Provide(injector, providers.ProvideImageProcessor)

	// Workers
	do.Provide(injector, providers.ProvideScraper)
	do.Provide(injector, providers.ProvideLibrary)

	// HTTP
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services in dependency order.
func Bootstrap(injector do.Injector) error {
	do.MustInvoke[*providers.StoreHandle](injector)
	do.MustInvoke[*providers.StatsHandle](injector)
	do.MustInvoke[*providers.TagsHandle](injector)
	do.MustInvoke[*providers.SearchIndexHandle](injector)
	do.MustInvoke[*providers.RoutingTableHandle](injector)
	do.MustInvoke[*providers.ScraperHandle](injector)
	do.MustInvoke[*providers.HTTPServerHandle](injector)

	// Rebuild the search index when the catalog has data the index lacks.
	providers.ReindexIfNeeded(injector)
	return nil
}
