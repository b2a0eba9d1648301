package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/media/pagecache"
)

func (s *Server) registerCacheRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "cache-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/cache/stats",
		Summary:     "Page cache usage",
		Tags:        []string{"Cache"},
	}, s.handleCacheStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "cache-clean",
		Method:      http.MethodPost,
		Path:        "/api/v1/cache/clean",
		Summary:     "Evict least recently read series",
		Description: "No-op while usage is below the eviction threshold",
		Tags:        []string{"Cache"},
	}, s.handleCacheClean)

	huma.Register(s.api, huma.Operation{
		OperationID: "cache-clear",
		Method:      http.MethodDelete,
		Path:        "/api/v1/cache",
		Summary:     "Drop the whole page cache",
		Tags:        []string{"Cache"},
	}, s.handleCacheClear)

	huma.Register(s.api, huma.Operation{
		OperationID: "cache-remove-series",
		Method:      http.MethodDelete,
		Path:        "/api/v1/cache/series/{id}",
		Summary:     "Drop one series from the page cache",
		Tags:        []string{"Cache"},
	}, s.handleCacheRemoveSeries)

	huma.Register(s.api, huma.Operation{
		OperationID: "download-chapter",
		Method:      http.MethodPost,
		Path:        "/api/v1/series/{id}/chapters/{chapterId}/download",
		Summary:     "Download a chapter into the cache",
		Tags:        []string{"Cache"},
	}, s.handleDownloadChapter)
}

// === DTOs ===

// CacheStatsOutput reports page cache usage.
type CacheStatsOutput struct {
	Body struct {
		SizeBytes int64 `json:"sizeBytes" doc:"Bytes on disk"`
	}
}

// CacheCleanOutput reports an eviction pass.
type CacheCleanOutput struct {
	Body pagecache.CleanResult
}

// DownloadOutput reports a synchronous chapter download.
type DownloadOutput struct {
	Body pagecache.ChapterResult
}

// === Handlers ===

func (s *Server) handleCacheStats(ctx context.Context, _ *struct{}) (*CacheStatsOutput, error) {
	size, err := s.deps.Pages.Size(ctx)
	if err != nil {
		return nil, err
	}

	out := &CacheStatsOutput{}
	out.Body.SizeBytes = size
	return out, nil
}

func (s *Server) handleCacheClean(ctx context.Context, _ *struct{}) (*CacheCleanOutput, error) {
	result, err := s.deps.Pages.Clean(ctx)
	if err != nil {
		return nil, err
	}
	return &CacheCleanOutput{Body: *result}, nil
}

func (s *Server) handleCacheClear(_ context.Context, _ *struct{}) (*MessageOutput, error) {
	if err := s.deps.Pages.Clear(); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "page cache cleared"}}, nil
}

func (s *Server) handleCacheRemoveSeries(_ context.Context, input *IDInput) (*MessageOutput, error) {
	if err := s.deps.Pages.RemoveSeries(input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "series removed from cache"}}, nil
}

func (s *Server) handleDownloadChapter(ctx context.Context, input *ChapterPagesInput) (*DownloadOutput, error) {
	chapter, err := s.deps.Store.GetChapter(ctx, input.ID, input.ChapterID)
	if err != nil {
		return nil, err
	}
	if len(chapter.Pages) == 0 {
		return nil, errors.Validation("chapter has no resolved pages; request the page list first")
	}

	sourceID, _ := domain.SplitID(input.ID)
	result, err := s.deps.Pages.DownloadChapter(ctx, input.ID, chapter, s.imageHeaders(sourceID), nil)
	if err != nil {
		return nil, err
	}
	return &DownloadOutput{Body: *result}, nil
}
