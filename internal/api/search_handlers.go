package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/yomihub/yomihub-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "search-local",
		Method:      http.MethodGet,
		Path:        "/api/v1/search",
		Summary:     "Search the local catalog",
		Description: "Full-text search over everything this server has saved, with facets and highlights",
		Tags:        []string{"Search"},
	}, s.handleLocalSearch)
}

// === DTOs ===

// LocalSearchInput contains parameters for searching the saved catalog.
type LocalSearchInput struct {
	Query        string  `query:"q" validate:"omitempty,max=200" doc:"Search query. Omit to browse everything."`
	Sources      string  `query:"sources" doc:"Comma-separated source IDs to restrict to"`
	Tags         string  `query:"tags" doc:"Comma-separated tags, all required"`
	Genres       string  `query:"genres" doc:"Comma-separated genres, any matches"`
	Status       string  `query:"status" doc:"Publication status filter"`
	Language     string  `query:"language" doc:"Language filter"`
	IncludeAdult bool    `query:"adult" doc:"Include adult entries"`
	MinRating    float64 `query:"min_rating" minimum:"0" maximum:"5" doc:"Minimum source rating"`
	Limit        int     `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Max results"`
	Offset       int     `query:"offset" minimum:"0" doc:"Pagination offset"`
	SortBy       string  `query:"sort_by" enum:",relevance,title,rating,views,recent" doc:"Sort key"`
	SortOrder    string  `query:"sort_order" enum:",asc,desc" default:"desc" doc:"Sort direction"`
	Facets       bool    `query:"facets" doc:"Include facet counts"`
}

// LocalSearchHit is one search result.
type LocalSearchHit struct {
	ID         string            `json:"id" doc:"Series ID"`
	SourceID   string            `json:"sourceId" doc:"Owning source"`
	Score      float64           `json:"score" doc:"Relevance score"`
	Title      string            `json:"title" doc:"Title"`
	Author     string            `json:"author,omitempty" doc:"Author"`
	Status     string            `json:"status,omitempty" doc:"Publication status"`
	Language   string            `json:"language,omitempty" doc:"Language code"`
	Adult      bool              `json:"adult,omitempty" doc:"Adult content flag"`
	Rating     float64           `json:"rating,omitempty" doc:"Source rating"`
	Views      int64             `json:"views,omitempty" doc:"Source view count"`
	Highlights map[string]string `json:"highlights,omitempty" doc:"Highlighted matches"`
}

// LocalSearchResponse contains local search results.
type LocalSearchResponse struct {
	Query  string           `json:"query" doc:"Original query"`
	Total  uint64           `json:"total" doc:"Total matches"`
	TookMs int64            `json:"took_ms" doc:"Search duration in milliseconds"`
	Hits   []LocalSearchHit `json:"hits"`
	Facets *search.Facets   `json:"facets,omitempty" doc:"Facet counts for filtering"`
}

// LocalSearchOutput wraps the search response for huma.
type LocalSearchOutput struct {
	Body LocalSearchResponse
}

// === Handlers ===

func (s *Server) handleLocalSearch(ctx context.Context, input *LocalSearchInput) (*LocalSearchOutput, error) {
	params := search.DefaultParams()
	params.Query = input.Query
	params.Sources = splitCSV(input.Sources)
	params.Tags = splitCSV(input.Tags)
	params.Genres = splitCSV(input.Genres)
	params.Status = input.Status
	params.Language = input.Language
	params.IncludeAdult = input.IncludeAdult || s.deps.IncludeAdultDefault
	params.MinRating = input.MinRating
	params.Limit = input.Limit
	params.Offset = input.Offset
	params.IncludeFacets = input.Facets
	if input.SortBy != "" {
		params.SortBy = input.SortBy
	}
	if input.SortOrder != "" {
		params.SortOrder = input.SortOrder
	}

	result, err := s.deps.Search.Search(ctx, params)
	if err != nil {
		s.logger.Error("local search failed", "query", input.Query, "error", err)
		return nil, err
	}

	resp := LocalSearchResponse{
		Query:  input.Query,
		Total:  result.Total,
		TookMs: result.TookMs,
		Hits:   make([]LocalSearchHit, 0, len(result.Hits)),
		Facets: result.Facets,
	}
	for i := range result.Hits {
		hit := &result.Hits[i]
		resp.Hits = append(resp.Hits, LocalSearchHit{
			ID:         hit.ID,
			SourceID:   hit.SourceID,
			Score:      hit.Score,
			Title:      hit.Title,
			Author:     hit.Author,
			Status:     hit.Status,
			Language:   hit.Language,
			Adult:      hit.Adult,
			Rating:     hit.Rating,
			Views:      hit.Views,
			Highlights: hit.Highlights,
		})
	}
	return &LocalSearchOutput{Body: resp}, nil
}
