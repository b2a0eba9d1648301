package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/library"
)

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "upload-series",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/series",
		Summary:     "Register a self-hosted series",
		Description: "Creates a series under the local source with its chapters and page lists",
		Tags:        []string{"Admin"},
	}, s.handleUploadSeries)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-series",
		Method:      http.MethodDelete,
		Path:        "/api/v1/admin/series/{id}",
		Summary:     "Delete a series",
		Description: "Removes the catalog record, chapters, cached pages, cover, and tag associations",
		Tags:        []string{"Admin"},
	}, s.handleDeleteSeries)
}

// === DTOs ===

// UploadChapterInput is one chapter in an upload request.
type UploadChapterInput struct {
	Number float64  `json:"number" validate:"gte=0" doc:"Chapter number"`
	Title  string   `json:"title,omitempty" validate:"omitempty,max=512" doc:"Chapter title"`
	Pages  []string `json:"pages" validate:"required,min=1" doc:"Page image URLs in reading order"`
}

// UploadSeriesInput is the admin upload request.
type UploadSeriesInput struct {
	Body struct {
		Title       string               `json:"title" validate:"required,min=1,max=512" doc:"Series title"`
		Description string               `json:"description,omitempty" doc:"Description, HTML allowed and stripped"`
		CoverURL    string               `json:"coverUrl,omitempty" validate:"omitempty,url" doc:"Cover image URL"`
		Author      string               `json:"author,omitempty" validate:"omitempty,max=256" doc:"Author"`
		Artist      string               `json:"artist,omitempty" validate:"omitempty,max=256" doc:"Artist"`
		Status      string               `json:"status,omitempty" doc:"Publication status"`
		Tags        []string             `json:"tags,omitempty" doc:"Tags"`
		Genres      []string             `json:"genres,omitempty" doc:"Genres"`
		Language    string               `json:"language,omitempty" validate:"omitempty,max=8" doc:"Language code"`
		Adult       bool                 `json:"adult,omitempty" doc:"Adult content flag"`
		Chapters    []UploadChapterInput `json:"chapters,omitempty" validate:"omitempty,dive" doc:"Chapters with page lists"`
	}
}

// UploadSeriesOutput reports the created series.
type UploadSeriesOutput struct {
	Status int
	Body   SeriesSummary
}

// === Handlers ===

func (s *Server) handleUploadSeries(ctx context.Context, input *UploadSeriesInput) (*UploadSeriesOutput, error) {
	if s.deps.Library == nil {
		return nil, errors.Unsupported("self-hosted uploads are not enabled on this server")
	}
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}

	req := library.UploadRequest{
		Title:       input.Body.Title,
		Description: input.Body.Description,
		CoverURL:    input.Body.CoverURL,
		Author:      input.Body.Author,
		Artist:      input.Body.Artist,
		Status:      input.Body.Status,
		Tags:        input.Body.Tags,
		Genres:      input.Body.Genres,
		Language:    input.Body.Language,
		Adult:       input.Body.Adult,
	}
	for _, c := range input.Body.Chapters {
		req.Chapters = append(req.Chapters, library.UploadChapter{
			Number: c.Number,
			Title:  c.Title,
			Pages:  c.Pages,
		})
	}

	series, err := s.deps.Library.Upload(ctx, req)
	if err != nil {
		return nil, err
	}
	return &UploadSeriesOutput{Status: http.StatusCreated, Body: toSummary(series)}, nil
}

func (s *Server) handleDeleteSeries(ctx context.Context, input *IDInput) (*MessageOutput, error) {
	if s.deps.Library == nil {
		return nil, errors.Unsupported("series deletion is not enabled on this server")
	}

	if err := s.deps.Library.Delete(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "series deleted"}}, nil
}
