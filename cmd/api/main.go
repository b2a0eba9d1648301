// Package main provides the entry point for the YomiHub server application.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/do/v2"

	"github.com/yomihub/yomihub-server/internal/di"
	"github.com/yomihub/yomihub-server/internal/di/providers"
	"github.com/yomihub/yomihub-server/internal/logger"
)

func main() {
	// Create DI container
	injector := di.NewContainer()

	// Bootstrap all services
	if err := di.Bootstrap(injector); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap server: %v\n", err)
		os.Exit(1)
	}

	// Get logger for shutdown messages
	log := do.MustInvoke[*logger.Logger](injector)

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server gracefully...")

	// Shutdown all services in reverse order
	// The DI container handles shutdown order automatically
	if err := injector.Shutdown(); err != nil {
		log.Error("Shutdown error", "error", err)
	}

	// The storage handles close last so writers flushed by the shutdowns
	// above still have a live database underneath them.
	closeHandle := func(name string, shutdown func() error) {
		log.Info("Closing " + name + "...")
		if err := shutdown(); err != nil {
			log.Error("Failed to close "+name, "error", err)
		}
	}

	if h, err := do.Invoke[*providers.SearchIndexHandle](injector); err == nil {
		closeHandle("search index", h.Shutdown)
	}
	if h, err := do.Invoke[*providers.TagsHandle](injector); err == nil {
		closeHandle("tag index", h.Shutdown)
	}
	if h, err := do.Invoke[*providers.StatsHandle](injector); err == nil {
		closeHandle("stats database", h.Shutdown)
	}
	if h, err := do.Invoke[*providers.StoreHandle](injector); err == nil {
		closeHandle("catalog store", h.Shutdown)
	}

	log.Info("See you space cowboy...")
}
