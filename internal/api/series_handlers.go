package api

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/library"
	"github.com/yomihub/yomihub-server/internal/source"
)

func (s *Server) registerSeriesRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-series",
		Method:      http.MethodGet,
		Path:        "/api/v1/series/{id}",
		Summary:     "Series details",
		Description: "Returns the local record, fetching from the owning source on a miss",
		Tags:        []string{"Series"},
	}, s.handleGetSeries)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-chapters",
		Method:      http.MethodGet,
		Path:        "/api/v1/series/{id}/chapters",
		Summary:     "Chapter list",
		Tags:        []string{"Series"},
	}, s.handleListChapters)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-chapter-pages",
		Method:      http.MethodGet,
		Path:        "/api/v1/series/{id}/chapters/{chapterId}/pages",
		Summary:     "Chapter pages",
		Description: "Resolves page locations, preferring cached files, and fills the cache in the background",
		Tags:        []string{"Series"},
	}, s.handleChapterPages)
}

// === DTOs ===

// SeriesDetail is the full series projection.
type SeriesDetail struct {
	SeriesSummary
	AltTitles   []string  `json:"altTitles,omitempty" doc:"Alternative titles"`
	Description string    `json:"description,omitempty" doc:"Plain-text description"`
	Artist      string    `json:"artist,omitempty" doc:"Artist"`
	Genres      []string  `json:"genres,omitempty" doc:"Genres"`
	LocalViews  int64     `json:"localViews" doc:"Views recorded by this server"`
	SavedAt     time.Time `json:"savedAt" doc:"First seen by this server"`
	UpdatedAt   time.Time `json:"updatedAt" doc:"Last source update"`
}

// SeriesOutput wraps a series detail response.
type SeriesOutput struct {
	Body SeriesDetail
}

// ChapterSummary is one chapter in a listing.
type ChapterSummary struct {
	ID        string    `json:"id" doc:"Chapter ID, unique within the series"`
	Number    float64   `json:"number" doc:"Chapter number, fractional for specials"`
	Title     string    `json:"title,omitempty" doc:"Chapter title"`
	Volume    string    `json:"volume,omitempty" doc:"Volume label"`
	Language  string    `json:"language,omitempty" doc:"Translation language"`
	Scanlator string    `json:"scanlator,omitempty" doc:"Scanlation group"`
	PageCount int       `json:"pageCount" doc:"Number of pages"`
	CreatedAt time.Time `json:"createdAt" doc:"Source publish time"`
}

// ChapterListInput parameterizes the chapter listing.
type ChapterListInput struct {
	ID    string `path:"id" doc:"Series ID"`
	Order string `query:"order" enum:",asc,desc" default:"asc" doc:"Chapter number order"`
}

// ChapterListOutput wraps the chapter listing.
type ChapterListOutput struct {
	Body struct {
		SeriesID string           `json:"seriesId" doc:"Owning series"`
		Total    int              `json:"total" doc:"Chapter count"`
		Chapters []ChapterSummary `json:"chapters"`
		Cached   bool             `json:"cached" doc:"Whether the list came from the local store"`
	}
}

// PageEntry is one resolved page location.
type PageEntry struct {
	Index  int    `json:"index" doc:"1-based page index"`
	URL    string `json:"url" doc:"Image location, local path when cached"`
	Cached bool   `json:"cached" doc:"Whether the page is on local disk"`
}

// ChapterPagesInput identifies one chapter.
type ChapterPagesInput struct {
	ID        string `path:"id" doc:"Series ID"`
	ChapterID string `path:"chapterId" doc:"Chapter ID"`
}

// ChapterPagesOutput wraps the resolved page list.
type ChapterPagesOutput struct {
	Body struct {
		PageCount int         `json:"pageCount" doc:"Number of pages"`
		Pages     []PageEntry `json:"pages"`
		Cached    bool        `json:"cached" doc:"Whether every page is on local disk"`
	}
}

// === Handlers ===

func (s *Server) handleGetSeries(ctx context.Context, input *IDInput) (*SeriesOutput, error) {
	series, err := s.getOrFetchSeries(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	var localViews int64
	if s.deps.Stats != nil {
		if err := s.deps.Stats.IncrementSeriesViews(ctx, input.ID); err != nil {
			s.logger.Warn("view count update failed", "series", input.ID, "error", err)
		}
		localViews, _ = s.deps.Stats.SeriesViews(ctx, input.ID) //nolint:errcheck // display-only counter
	}

	detail := SeriesDetail{
		SeriesSummary: toSummary(series),
		AltTitles:     series.AltTitles,
		Description:   series.Description,
		Artist:        series.Artist,
		Genres:        series.Genres,
		LocalViews:    localViews,
		SavedAt:       series.SavedAt,
		UpdatedAt:     series.UpdatedAt,
	}
	return &SeriesOutput{Body: detail}, nil
}

// getOrFetchSeries serves the local record when present, otherwise asks
// the owning source and persists the answer.
func (s *Server) getOrFetchSeries(ctx context.Context, id string) (*domain.Series, error) {
	series, err := s.deps.Store.GetSeries(ctx, id)
	if err == nil {
		return series, nil
	}
	if !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}

	adapter, nativeID, err := s.resolveAdapter(id, source.CapDetails)
	if err != nil {
		return nil, err
	}

	series, err = adapter.Details(ctx, nativeID)
	if err != nil {
		return nil, err
	}
	if err := s.deps.Store.SaveSeries(ctx, series); err != nil {
		s.logger.Warn("write-through failed", "series", id, "error", err)
	}
	s.processCoverAsync(series)
	return series, nil
}

// resolveAdapter maps a composite series ID to its adapter. Self-hosted
// series have no adapter; a stale local ID surfaces as not found.
func (s *Server) resolveAdapter(id string, want source.Capability) (source.Adapter, string, error) {
	sourceID, nativeID := domain.SplitID(id)
	if sourceID == "" {
		return nil, "", errors.Validationf("malformed series id %q", id)
	}
	if sourceID == library.SourceID {
		return nil, "", errors.NotFoundf("series %s", id)
	}

	adapter, err := s.deps.Registry.Get(sourceID)
	if err != nil {
		return nil, "", err
	}
	if !adapter.Info().Caps.Has(want) {
		return nil, "", errors.Unsupported("source " + sourceID + " cannot serve this request")
	}
	return adapter, nativeID, nil
}

// processCoverAsync computes the cover blurhash off the request path and
// persists it when it lands.
func (s *Server) processCoverAsync(series *domain.Series) {
	if s.deps.Covers == nil || series.CoverURL == "" || series.BlurHash != "" {
		return
	}
	headers := s.imageHeaders(series.SourceID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		hash, err := s.deps.Covers.ProcessCover(ctx, series.ID, series.CoverURL, headers, false)
		if err != nil || hash == "" {
			return
		}
		stored, err := s.deps.Store.GetSeries(ctx, series.ID)
		if err != nil {
			return
		}
		stored.BlurHash = hash
		if err := s.deps.Store.SaveSeries(ctx, stored); err != nil {
			s.logger.Warn("blurhash persist failed", "series", series.ID, "error", err)
		}
	}()
}

func (s *Server) imageHeaders(sourceID string) map[string]string {
	adapter, err := s.deps.Registry.Get(sourceID)
	if err != nil {
		return nil
	}
	return adapter.Info().ImageHeaders
}

func (s *Server) handleListChapters(ctx context.Context, input *ChapterListInput) (*ChapterListOutput, error) {
	chapters, cached, err := s.getOrFetchChapters(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if input.Order == "desc" {
		sort.SliceStable(chapters, func(i, j int) bool {
			return chapters[i].Number > chapters[j].Number
		})
	}

	out := &ChapterListOutput{}
	out.Body.SeriesID = input.ID
	out.Body.Total = len(chapters)
	out.Body.Cached = cached
	out.Body.Chapters = make([]ChapterSummary, 0, len(chapters))
	for i := range chapters {
		c := &chapters[i]
		out.Body.Chapters = append(out.Body.Chapters, ChapterSummary{
			ID:        c.ID,
			Number:    c.Number,
			Title:     c.Title,
			Volume:    c.Volume,
			Language:  c.Language,
			Scanlator: c.Scanlator,
			PageCount: c.PageCount,
			CreatedAt: c.CreatedAt,
		})
	}
	return out, nil
}

// getOrFetchChapters serves chapters from the store when present; cached
// reports whether the answer came from the store rather than a source.
func (s *Server) getOrFetchChapters(ctx context.Context, seriesID string) (chapters []domain.Chapter, cached bool, err error) {
	chapters, err = s.deps.Store.GetChapters(ctx, seriesID)
	if err != nil {
		return nil, false, err
	}
	if len(chapters) > 0 {
		return chapters, true, nil
	}

	adapter, nativeID, err := s.resolveAdapter(seriesID, source.CapChapters)
	if err != nil {
		// A known local series legitimately has zero chapters.
		if errors.Is(err, errors.ErrNotFound) {
			if _, lookupErr := s.deps.Store.GetSeries(ctx, seriesID); lookupErr == nil {
				return chapters, true, nil
			}
		}
		return nil, false, err
	}

	chapters, err = adapter.Chapters(ctx, nativeID)
	if err != nil {
		return nil, false, err
	}
	if err := s.deps.Store.SaveChapters(ctx, seriesID, chapters); err != nil {
		s.logger.Warn("chapter write-through failed", "series", seriesID, "error", err)
	}
	chapters, err = s.deps.Store.GetChapters(ctx, seriesID)
	return chapters, false, err
}

func (s *Server) handleChapterPages(ctx context.Context, input *ChapterPagesInput) (*ChapterPagesOutput, error) {
	chapter, err := s.deps.Store.GetChapter(ctx, input.ID, input.ChapterID)
	if errors.Is(err, errors.ErrNotFound) {
		if _, _, err := s.getOrFetchChapters(ctx, input.ID); err != nil {
			return nil, err
		}
		chapter, err = s.deps.Store.GetChapter(ctx, input.ID, input.ChapterID)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if len(chapter.Pages) == 0 {
		adapter, nativeID, err := s.resolveAdapter(input.ID, source.CapPages)
		if err != nil {
			return nil, err
		}
		pages, err := adapter.ChapterPages(ctx, nativeID, input.ChapterID)
		if err != nil {
			return nil, err
		}
		chapter.Pages = pages
		chapter.PageCount = len(pages)
		if err := s.deps.Store.SaveChapters(ctx, input.ID, []domain.Chapter{*chapter}); err != nil {
			s.logger.Warn("page list write-through failed", "series", input.ID, "error", err)
		}
	}

	if s.deps.Stats != nil {
		if err := s.deps.Stats.IncrementChapterViews(ctx, input.ID, input.ChapterID); err != nil {
			s.logger.Warn("view count update failed", "series", input.ID, "chapter", input.ChapterID, "error", err)
		}
	}

	out := &ChapterPagesOutput{}
	out.Body.PageCount = len(chapter.Pages)
	out.Body.Pages = make([]PageEntry, 0, len(chapter.Pages))
	allCached := true
	for _, page := range chapter.Pages {
		location, cached := s.deps.Pages.ResolveURL(input.ID, chapter.ID, page.Index, page.RemoteURL)
		if !cached {
			allCached = false
		}
		out.Body.Pages = append(out.Body.Pages, PageEntry{Index: page.Index, URL: location, Cached: cached})
	}
	out.Body.Cached = allCached

	if !allCached {
		s.fillCacheAsync(input.ID, chapter)
	}
	return out, nil
}

// fillCacheAsync downloads a chapter's pages in the background so the
// next read is local.
func (s *Server) fillCacheAsync(seriesID string, chapter *domain.Chapter) {
	sourceID, _ := domain.SplitID(seriesID)
	headers := s.imageHeaders(sourceID)
	snapshot := *chapter
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if _, err := s.deps.Pages.DownloadChapter(ctx, seriesID, &snapshot, headers, nil); err != nil {
			s.logger.Warn("background cache fill failed", "series", seriesID, "chapter", snapshot.ID, "error", err)
		}
	}()
}
