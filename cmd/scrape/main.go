// Package main runs a single catalog scrape and exits.
//
// Useful for cron-driven setups where the API server runs without a
// scrape interval configured.
//
// Usage:
//
//	DATA_PATH=~/YomiHub/data go run ./cmd/scrape --pages=3
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/yomihub/yomihub-server/internal/fetch"
	"github.com/yomihub/yomihub-server/internal/ratelimit"
	"github.com/yomihub/yomihub-server/internal/scrape"
	"github.com/yomihub/yomihub-server/internal/source"
	"github.com/yomihub/yomihub-server/internal/source/ehentai"
	"github.com/yomihub/yomihub-server/internal/source/hitomi"
	"github.com/yomihub/yomihub-server/internal/source/mangadex"
	"github.com/yomihub/yomihub-server/internal/source/nhentai"
	"github.com/yomihub/yomihub-server/internal/store"
	"github.com/yomihub/yomihub-server/internal/store/statsdb"
)

var (
	pages        = flag.Int("pages", 2, "Listing pages to walk per source")
	pageLimit    = flag.Int("page-limit", 50, "Series per listing page")
	withChapters = flag.Bool("chapters", false, "Also fetch chapter lists")
	timeout      = flag.Duration("source-timeout", 2*time.Minute, "Per-source time budget")
	interval     = flag.Duration("interval", time.Second, "Minimum delay between upstream requests")
)

func main() {
	flag.Parse()

	dataPath := os.Getenv("DATA_PATH")
	if dataPath == "" {
		dataPath = os.ExpandEnv("$HOME/YomiHub/data")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	s, err := store.New(filepath.Join(dataPath, "catalog"), logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer s.Close()

	stats, err := statsdb.Open(filepath.Join(dataPath, "stats.db"), logger)
	if err != nil {
		log.Fatalf("Failed to open stats database: %v", err)
	}
	defer stats.Close()

	fetcher := fetch.NewClient(ratelimit.New(*interval), logger)
	registry := source.NewRegistry(
		mangadex.New(fetcher, logger),
		nhentai.New(fetcher, logger),
		hitomi.New(fetcher, logger),
		ehentai.New(fetcher, logger),
	)

	scraper := scrape.New(registry, s, stats, logger, &scrape.Options{
		PageLimit:     *pageLimit,
		Pages:         *pages,
		SourceTimeout: *timeout,
		WithChapters:  *withChapters,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	start := time.Now()
	if err := scraper.Run(ctx); err != nil {
		log.Fatalf("Scrape failed: %v", err)
	}

	fmt.Printf("Scrape finished in %s\n", time.Since(start).Round(time.Second))
}
