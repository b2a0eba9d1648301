// Package scrape periodically sweeps every registered source's popular and
// latest listings into the local store, so the catalog keeps serving when
// providers are slow or down.
package scrape

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/source"
	"github.com/yomihub/yomihub-server/internal/store"
	"github.com/yomihub/yomihub-server/internal/store/statsdb"
)

const (
	defaultPageLimit   = 50
	defaultSweepPages  = 2
	defaultSourceLimit = 10 * time.Minute
)

// Options tunes a sweep.
type Options struct {
	PageLimit     int           // Series per listing page
	Pages         int           // Listing pages per mode per source
	SourceTimeout time.Duration // Ceiling per source
	WithChapters  bool          // Also refresh chapter lists for swept series
}

func (o *Options) withDefaults() Options {
	out := Options{PageLimit: defaultPageLimit, Pages: defaultSweepPages, SourceTimeout: defaultSourceLimit}
	if o == nil {
		return out
	}
	if o.PageLimit > 0 {
		out.PageLimit = o.PageLimit
	}
	if o.Pages > 0 {
		out.Pages = o.Pages
	}
	if o.SourceTimeout > 0 {
		out.SourceTimeout = o.SourceTimeout
	}
	out.WithChapters = o.WithChapters
	return out
}

// SweepStatus reports scraper state.
type SweepStatus struct {
	Running bool                `json:"running"`
	Runs    []statsdb.ScrapeRun `json:"runs,omitempty"`
}

// Scraper walks sources and writes their listings through to the store.
// Only one sweep runs at a time; overlapping triggers are rejected rather
// than queued.
type Scraper struct {
	registry *source.Registry
	store    *store.Store
	stats    *statsdb.Store
	logger   *slog.Logger
	opts     Options

	running atomic.Bool
}

// New creates a scraper. stats may be nil to skip run bookkeeping.
func New(registry *source.Registry, st *store.Store, stats *statsdb.Store, logger *slog.Logger, opts *Options) *Scraper {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scraper{
		registry: registry,
		store:    st,
		stats:    stats,
		logger:   logger,
		opts:     opts.withDefaults(),
	}
}

// Running reports whether a sweep is in progress.
func (s *Scraper) Running() bool {
	return s.running.Load()
}

// Status returns the current state plus recorded runs.
func (s *Scraper) Status(ctx context.Context) (*SweepStatus, error) {
	status := &SweepStatus{Running: s.running.Load()}
	if s.stats != nil {
		runs, err := s.stats.ScrapeRuns(ctx)
		if err != nil {
			return nil, err
		}
		status.Runs = runs
	}
	return status, nil
}

// Run performs one full sweep across all enabled sources. A second call
// while one is in flight fails with a conflict.
func (s *Scraper) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.Conflict("a scrape is already running")
	}
	defer s.running.Store(false)

	started := time.Now()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "scrape sweep started")

	for _, info := range s.registry.Available(true) {
		if err := ctx.Err(); err != nil {
			return err
		}
		adapter, err := s.registry.Get(info.ID)
		if err != nil {
			continue
		}
		s.scrapeSource(ctx, adapter)
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "scrape sweep finished",
		slog.Duration("elapsed", time.Since(started)))
	return nil
}

// Start launches a ticker-driven sweep loop. It returns immediately; the
// loop stops when ctx is cancelled. A zero interval disables the loop.
func (s *Scraper) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Run(ctx); err != nil && !errors.Is(err, errors.ErrConflict) {
					s.logger.Warn("scheduled scrape failed", "error", err)
				}
			}
		}
	}()
}

// scrapeSource sweeps one source within its own timeout. Source failures
// are absorbed: one provider being down must not stop the sweep.
func (s *Scraper) scrapeSource(ctx context.Context, adapter source.Adapter) {
	info := adapter.Info()
	sourceCtx, cancel := context.WithTimeout(ctx, s.opts.SourceTimeout)
	defer cancel()

	if s.stats != nil {
		if err := s.stats.BeginScrape(sourceCtx, info.ID, time.Now()); err != nil {
			s.logger.Warn("failed to record scrape start", "source", info.ID, "error", err)
		}
	}

	var seen, failed int64
	sweep := func(mode string, list func(context.Context, source.Options) ([]domain.Series, error)) {
		for page := 1; page <= s.opts.Pages; page++ {
			series, err := list(sourceCtx, source.Options{Page: page, Limit: s.opts.PageLimit, IncludeAdult: true})
			if err != nil {
				failed++
				s.logger.Warn("scrape listing failed",
					"source", info.ID, "mode", mode, "page", page, "error", err)
				return
			}
			if len(series) == 0 {
				return
			}
			for i := range series {
				if err := s.saveSeries(sourceCtx, adapter, &series[i]); err != nil {
					failed++
					continue
				}
				seen++
			}
		}
	}

	if info.Caps.Has(source.CapPopular) {
		sweep("popular", adapter.Popular)
	}
	if info.Caps.Has(source.CapLatest) {
		sweep("latest", adapter.Latest)
	}

	if s.stats != nil {
		if err := s.stats.FinishScrape(context.WithoutCancel(sourceCtx), info.ID, time.Now(), seen, failed); err != nil {
			s.logger.Warn("failed to record scrape finish", "source", info.ID, "error", err)
		}
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "scraped source",
		slog.String("source", info.ID),
		slog.Int64("series", seen),
		slog.Int64("errors", failed))
}

// saveSeries writes one series through to the store, optionally refreshing
// its chapter list.
func (s *Scraper) saveSeries(ctx context.Context, adapter source.Adapter, series *domain.Series) error {
	if err := s.store.SaveSeries(ctx, series); err != nil {
		s.logger.Warn("failed to save scraped series", "series_id", series.ID, "error", err)
		return err
	}

	if s.opts.WithChapters && adapter.Info().Caps.Has(source.CapChapters) {
		chapters, err := adapter.Chapters(ctx, series.Slug)
		if err != nil {
			s.logger.Debug("failed to refresh chapters", "series_id", series.ID, "error", err)
			return nil
		}
		if err := s.store.SaveChapters(ctx, series.ID, chapters); err != nil {
			s.logger.Warn("failed to save scraped chapters", "series_id", series.ID, "error", err)
		}
	}
	return nil
}
