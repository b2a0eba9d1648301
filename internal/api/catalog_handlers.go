package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/yomihub/yomihub-server/internal/aggregate"
	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/source"
)

func (s *Server) registerCatalogRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "catalog-search",
		Method:      http.MethodGet,
		Path:        "/api/v1/catalog/search",
		Summary:     "Search sources",
		Description: "Federated title search across the configured sources, cache first",
		Tags:        []string{"Catalog"},
	}, s.handleCatalogSearch)

	huma.Register(s.api, huma.Operation{
		OperationID: "catalog-popular",
		Method:      http.MethodGet,
		Path:        "/api/v1/catalog/popular",
		Summary:     "Popular series",
		Tags:        []string{"Catalog"},
	}, s.handleCatalogPopular)

	huma.Register(s.api, huma.Operation{
		OperationID: "catalog-latest",
		Method:      http.MethodGet,
		Path:        "/api/v1/catalog/latest",
		Summary:     "Latest updates",
		Tags:        []string{"Catalog"},
	}, s.handleCatalogLatest)
}

// === DTOs ===

// CatalogInput contains parameters shared by the catalog listing endpoints.
type CatalogInput struct {
	Query        string `query:"q" validate:"omitempty,max=200" doc:"Search query"`
	Sources      string `query:"sources" doc:"Comma-separated source IDs. Omit for routing/all."`
	Category     string `query:"category" doc:"Category routed through the routing table"`
	Page         int    `query:"page" default:"1" minimum:"1" doc:"Page number"`
	Limit        int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Results per page"`
	Language     string `query:"language" doc:"Preferred result language"`
	IncludeAdult bool   `query:"adult" doc:"Include adult sources"`
	Tags         string `query:"tags" doc:"Comma-separated tags every result must carry"`
	ExcludeTags  string `query:"exclude_tags" doc:"Comma-separated tags no result may carry"`
	Status       string `query:"status" doc:"Publication status filter"`
	Sort         string `query:"sort" enum:",relevance,popular,latest,rating" doc:"Sort key"`
	Refresh      bool   `query:"refresh" doc:"Skip the local cache and query sources"`
}

// CatalogMeta describes how a catalog response was assembled.
type CatalogMeta struct {
	Query              string         `json:"query,omitempty" doc:"Original query"`
	Page               int            `json:"page" doc:"Page number"`
	Limit              int            `json:"limit" doc:"Requested page size"`
	Total              int            `json:"total" doc:"Results in this response"`
	HasMore            bool           `json:"hasMore" doc:"Whether a next page likely exists"`
	Sources            []string       `json:"sources" doc:"Sources consulted"`
	SourceResultCounts map[string]int `json:"sourceResultCounts" doc:"Per-source result counts"`
	Cached             bool           `json:"cached" doc:"Served from the local catalog without touching sources"`
}

// SeriesSummary is the listing projection of a series.
type SeriesSummary struct {
	ID           string   `json:"id" doc:"Composite series ID (source:native)"`
	SourceID     string   `json:"sourceId" doc:"Owning source"`
	Title        string   `json:"title" doc:"Display title"`
	CoverURL     string   `json:"coverUrl,omitempty" doc:"Cover image URL"`
	BlurHash     string   `json:"blurHash,omitempty" doc:"Cover placeholder hash"`
	Author       string   `json:"author,omitempty" doc:"Author"`
	Status       string   `json:"status" doc:"Publication status"`
	Tags         []string `json:"tags,omitempty" doc:"Tags"`
	Language     string   `json:"language,omitempty" doc:"Language code"`
	Adult        bool     `json:"adult,omitempty" doc:"Adult content flag"`
	Rating       float64  `json:"rating,omitempty" doc:"Source rating, 0-5"`
	Views        int64    `json:"views,omitempty" doc:"Source view count"`
	ChapterCount int      `json:"chapterCount,omitempty" doc:"Known chapter count"`
}

// CatalogResponse is a merged catalog listing.
type CatalogResponse struct {
	Meta   CatalogMeta     `json:"meta"`
	Series []SeriesSummary `json:"series"`
}

// CatalogOutput wraps the catalog response for huma.
type CatalogOutput struct {
	Body CatalogResponse
}

// === Handlers ===

func (s *Server) handleCatalogSearch(ctx context.Context, input *CatalogInput) (*CatalogOutput, error) {
	// A warm catalog answers first-page queries without touching sources.
	if !input.Refresh && input.Page <= 1 && input.Query != "" && len(input.Sources) == 0 {
		local, err := s.deps.Store.FilterLocal(ctx, input.Query, input.Limit)
		if err == nil && len(local) >= input.Limit {
			return s.cachedOutput(input, local), nil
		}
	}
	return s.aggregated(ctx, aggregate.ModeSearch, input)
}

func (s *Server) handleCatalogPopular(ctx context.Context, input *CatalogInput) (*CatalogOutput, error) {
	if !input.Refresh && input.Page <= 1 && len(input.Sources) == 0 && input.Category == "" {
		local, err := s.deps.Store.PopularLocal(ctx, input.Limit)
		if err == nil && len(local) >= input.Limit {
			return s.cachedOutput(input, local), nil
		}
	}
	return s.aggregated(ctx, aggregate.ModePopular, input)
}

// Latest always goes upstream. The local catalog cannot know about
// chapters released since the last sweep, which is the whole point of
// the endpoint.
func (s *Server) handleCatalogLatest(ctx context.Context, input *CatalogInput) (*CatalogOutput, error) {
	return s.aggregated(ctx, aggregate.ModeLatest, input)
}

func (s *Server) aggregated(ctx context.Context, mode aggregate.Mode, input *CatalogInput) (*CatalogOutput, error) {
	req := aggregate.Request{
		Mode:         mode,
		Query:        input.Query,
		Sources:      splitCSV(input.Sources),
		Category:     input.Category,
		Page:         input.Page,
		Limit:        input.Limit,
		Language:     input.Language,
		IncludeAdult: input.IncludeAdult || s.deps.IncludeAdultDefault,
		IncludeTags:  splitCSV(input.Tags),
		ExcludeTags:  splitCSV(input.ExcludeTags),
		StatusFilter: input.Status,
		Sort:         source.Sort(input.Sort),
	}

	result, err := s.deps.Orchestrator.Run(ctx, req)
	if err != nil {
		s.logger.Error("catalog aggregation failed", "mode", mode, "error", err)
		return nil, err
	}

	s.writeThrough(ctx, result.Series)

	resp := CatalogResponse{
		Meta: CatalogMeta{
			Query:              input.Query,
			Page:               input.Page,
			Limit:              input.Limit,
			Total:              len(result.Series),
			HasMore:            len(result.Series) >= input.Limit,
			Sources:            result.Sources,
			SourceResultCounts: result.SourceResultCounts,
		},
		Series: toSummaries(result.Series),
	}
	return &CatalogOutput{Body: resp}, nil
}

func (s *Server) cachedOutput(input *CatalogInput, series []domain.Series) *CatalogOutput {
	return &CatalogOutput{Body: CatalogResponse{
		Meta: CatalogMeta{
			Query:              input.Query,
			Page:               input.Page,
			Limit:              input.Limit,
			Total:              len(series),
			Sources:            []string{},
			SourceResultCounts: map[string]int{},
			Cached:             true,
		},
		Series: toSummaries(series),
	}}
}

// writeThrough persists aggregated results so later requests can be
// served from the local catalog. Failures are logged, never surfaced.
func (s *Server) writeThrough(ctx context.Context, series []domain.Series) {
	for i := range series {
		if err := s.deps.Store.SaveSeries(ctx, &series[i]); err != nil {
			s.logger.Warn("write-through failed", "series", series[i].ID, "error", err)
		}
	}
}

func toSummaries(series []domain.Series) []SeriesSummary {
	out := make([]SeriesSummary, 0, len(series))
	for i := range series {
		out = append(out, toSummary(&series[i]))
	}
	return out
}

func toSummary(s *domain.Series) SeriesSummary {
	return SeriesSummary{
		ID:           s.ID,
		SourceID:     s.SourceID,
		Title:        s.Title,
		CoverURL:     s.CoverURL,
		BlurHash:     s.BlurHash,
		Author:       s.Author,
		Status:       string(s.Status),
		Tags:         s.Tags,
		Language:     s.Language,
		Adult:        s.Adult,
		Rating:       s.Rating,
		Views:        s.Views,
		ChapterCount: s.ChapterCount,
	}
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
