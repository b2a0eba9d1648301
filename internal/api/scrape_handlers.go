package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/scrape"
	"github.com/yomihub/yomihub-server/internal/store/statsdb"
)

func (s *Server) registerScrapeRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "trigger-scrape",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/scrape",
		Summary:     "Trigger a full rescan",
		Description: "Sweeps every source's popular and latest listings into the local catalog. Rejected while a sweep is running.",
		Tags:        []string{"Admin"},
	}, s.handleTriggerScrape)

	huma.Register(s.api, huma.Operation{
		OperationID: "scrape-status",
		Method:      http.MethodGet,
		Path:        "/api/v1/admin/scrape/status",
		Summary:     "Rescan status",
		Tags:        []string{"Admin"},
	}, s.handleScrapeStatus)

	huma.Register(s.api, huma.Operation{
		OperationID: "usage-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Server usage statistics",
		Tags:        []string{"Stats"},
	}, s.handleUsageStats)
}

// === DTOs ===

// ScrapeStatusOutput reports the scraper state and recent runs.
type ScrapeStatusOutput struct {
	Body scrape.SweepStatus
}

// UsageStatsInput parameterizes the stats report.
type UsageStatsInput struct {
	Top int `query:"top" default:"10" minimum:"1" maximum:"100" doc:"Number of top series to include"`
}

// UsageStatsOutput reports per-source catalog counts and the most read series.
type UsageStatsOutput struct {
	Body struct {
		Sources   []statsdb.SourceStats `json:"sources" doc:"Per-source saved series and view totals"`
		TopSeries map[string]int64      `json:"topSeries" doc:"Most viewed series IDs with counts"`
	}
}

// === Handlers ===

func (s *Server) handleTriggerScrape(ctx context.Context, _ *struct{}) (*MessageOutput, error) {
	if s.deps.Scraper == nil {
		return nil, errors.Unsupported("scraping is not enabled on this server")
	}

	if s.deps.Scraper.Running() {
		return nil, errors.Conflict("a scrape is already running")
	}

	// The sweep runs in the background; the request only starts it. A
	// concurrent trigger that slips past the check above still hits the
	// scraper's single-instance guard.
	go func() {
		if err := s.deps.Scraper.Run(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, errors.ErrConflict) {
			s.logger.Error("scrape run failed", "error", err)
		}
	}()
	return &MessageOutput{Body: MessageResponse{Message: "scrape started"}}, nil
}

func (s *Server) handleScrapeStatus(ctx context.Context, _ *struct{}) (*ScrapeStatusOutput, error) {
	if s.deps.Scraper == nil {
		return nil, errors.Unsupported("scraping is not enabled on this server")
	}

	status, err := s.deps.Scraper.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &ScrapeStatusOutput{Body: *status}, nil
}

func (s *Server) handleUsageStats(ctx context.Context, input *UsageStatsInput) (*UsageStatsOutput, error) {
	if s.deps.Stats == nil {
		return nil, errors.Unsupported("statistics are not enabled on this server")
	}

	bySource, err := s.deps.Stats.BySource(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.deps.Stats.TopSeries(ctx, input.Top)
	if err != nil {
		return nil, err
	}

	out := &UsageStatsOutput{}
	out.Body.Sources = bySource
	out.Body.TopSeries = top
	return out, nil
}
