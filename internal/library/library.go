// Package library manages self-hosted series: the admin upload path and
// the only series delete path in the system.
package library

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/media/images"
	"github.com/yomihub/yomihub-server/internal/media/pagecache"
	"github.com/yomihub/yomihub-server/internal/normalize"
	"github.com/yomihub/yomihub-server/internal/store"
	"github.com/yomihub/yomihub-server/internal/tags"
)

// SourceID is the reserved source for uploaded series.
const SourceID = "local"

// UploadChapter is one chapter of an upload, with its page URLs known up
// front.
type UploadChapter struct {
	Number float64  `json:"number"`
	Title  string   `json:"title,omitempty"`
	Pages  []string `json:"pages"`
}

// UploadRequest registers a self-hosted series.
type UploadRequest struct {
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	CoverURL    string          `json:"coverUrl,omitempty"`
	Author      string          `json:"author,omitempty"`
	Artist      string          `json:"artist,omitempty"`
	Status      string          `json:"status,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Genres      []string        `json:"genres,omitempty"`
	Language    string          `json:"language,omitempty"`
	Adult       bool            `json:"adult"`
	Chapters    []UploadChapter `json:"chapters,omitempty"`
}

// Service wires the upload and delete paths across the store, the page
// cache, the cover storage, and the tag index.
type Service struct {
	store  *store.Store
	cache  *pagecache.Cache
	covers *images.Storage
	tags   *tags.Index
	logger *slog.Logger
}

// NewService creates the library service. cache, covers, and tagIndex may
// each be nil; the corresponding cleanup is skipped.
func NewService(st *store.Store, cache *pagecache.Cache, covers *images.Storage, tagIndex *tags.Index, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:  st,
		cache:  cache,
		covers: covers,
		tags:   tagIndex,
		logger: logger,
	}
}

// Upload registers a self-hosted series with its chapters. The series gets
// a fresh UUID under the local source and is immediately visible to every
// local read path.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*domain.Series, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, errors.Validation("title is required")
	}

	native := uuid.NewString()
	now := time.Now()
	series := &domain.Series{
		ID:           domain.SeriesID(SourceID, native),
		SourceID:     SourceID,
		Slug:         native,
		Title:        normalize.Title(title),
		Description:  normalize.Description(req.Description),
		CoverURL:     req.CoverURL,
		Author:       req.Author,
		Artist:       req.Artist,
		Status:       normalize.Status(req.Status),
		Tags:         req.Tags,
		Genres:       req.Genres,
		Language:     req.Language,
		Adult:        req.Adult,
		ChapterCount: len(req.Chapters),
		UpdatedAt:    now,
	}

	chapters := make([]domain.Chapter, 0, len(req.Chapters))
	for _, uc := range req.Chapters {
		if uc.Number < 0 {
			return nil, errors.Validationf("chapter number %g is negative", uc.Number)
		}
		pages := make([]domain.PageRef, len(uc.Pages))
		for i, remote := range uc.Pages {
			pages[i] = domain.PageRef{Index: i + 1, RemoteURL: remote}
		}
		chapters = append(chapters, domain.Chapter{
			ID:        uuid.NewString(),
			SeriesID:  series.ID,
			Number:    uc.Number,
			Title:     uc.Title,
			Language:  req.Language,
			PageCount: len(pages),
			Pages:     pages,
			CreatedAt: now,
		})
	}

	if err := s.store.SaveSeries(ctx, series); err != nil {
		return nil, err
	}
	if len(chapters) > 0 {
		if err := s.store.SaveChapters(ctx, series.ID, chapters); err != nil {
			return nil, err
		}
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "registered uploaded series",
		slog.String("series_id", series.ID),
		slog.String("title", series.Title),
		slog.Int("chapters", len(chapters)))
	return series, nil
}

// Delete removes a series and everything hanging off it: chapters, cached
// pages, the stored cover, and tag associations. Cleanup beyond the store
// record is best effort.
func (s *Service) Delete(ctx context.Context, seriesID string) error {
	if _, err := s.store.GetSeries(ctx, seriesID); err != nil {
		return err
	}
	if err := s.store.DeleteSeries(ctx, seriesID); err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.RemoveSeries(seriesID); err != nil {
			s.logger.Warn("failed to remove cached pages", "series_id", seriesID, "error", err)
		}
	}
	if s.covers != nil {
		if err := s.covers.Delete(seriesID); err != nil {
			s.logger.Warn("failed to remove cover", "series_id", seriesID, "error", err)
		}
	}
	if s.tags != nil {
		if err := s.tags.CleanupSeries(ctx, seriesID); err != nil {
			s.logger.Warn("failed to remove tag associations", "series_id", seriesID, "error", err)
		}
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "deleted series",
		slog.String("series_id", seriesID))
	return nil
}
