package providers

import (
	"context"
	"net/http"

	"github.com/samber/do/v2"

	"github.com/yomihub/yomihub-server/internal/aggregate"
	"github.com/yomihub/yomihub-server/internal/api"
	"github.com/yomihub/yomihub-server/internal/config"
	"github.com/yomihub/yomihub-server/internal/library"
	"github.com/yomihub/yomihub-server/internal/logger"
	"github.com/yomihub/yomihub-server/internal/media/images"
	"github.com/yomihub/yomihub-server/internal/media/pagecache"
	"github.com/yomihub/yomihub-server/internal/source"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Server.Shutdown(ctx)
}

// ProvideHTTPServer provides the HTTP server.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	handler := api.NewServer(api.Dependencies{
		Store:               do.MustInvoke[*StoreHandle](i).Store,
		Registry:            do.MustInvoke[*source.Registry](i),
		Orchestrator:        do.MustInvoke[*aggregate.Orchestrator](i),
		Search:              do.MustInvoke[*SearchIndexHandle](i).Index,
		Tags:                do.MustInvoke[*TagsHandle](i).Index,
		Pages:               do.MustInvoke[*pagecache.Cache](i),
		Covers:              do.MustInvoke[*images.Processor](i),
		Stats:               do.MustInvoke[*StatsHandle](i).Store,
		Scraper:             do.MustInvoke[*ScraperHandle](i).Scraper,
		Library:             do.MustInvoke[*library.Service](i),
		Logger:              log.Logger,
		IncludeAdultDefault: cfg.Sources.IncludeAdultDefault,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{Server: srv}, nil
}
