package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/source"
	"github.com/yomihub/yomihub-server/internal/tags"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "create-tag",
		Method:      http.MethodPost,
		Path:        "/api/v1/tags",
		Summary:     "Create tag",
		Description: "Creating an existing tag returns the existing record",
		Tags:        []string{"Tags"},
	}, s.handleCreateTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-tags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Tags:        []string{"Tags"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "tag-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/stats",
		Summary:     "Tag statistics",
		Tags:        []string{"Tags"},
	}, s.handleTagStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "tag-intersect",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/intersect",
		Summary:     "Series carrying every tag",
		Tags:        []string{"Tags"},
	}, s.handleTagIntersect)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-tag",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Get tag",
		Tags:        []string{"Tags"},
	}, s.handleGetTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-tag",
		Method:      http.MethodDelete,
		Path:        "/api/v1/tags/{id}",
		Summary:     "Delete tag",
		Tags:        []string{"Tags"},
	}, s.handleDeleteTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-series-tags",
		Method:      http.MethodGet,
		Path:        "/api/v1/series/{id}/tags",
		Summary:     "Tags on a series",
		Tags:        []string{"Tags"},
	}, s.handleSeriesTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "tag-series",
		Method:      http.MethodPut,
		Path:        "/api/v1/series/{id}/tags/{tagId}",
		Summary:     "Attach tag to series",
		Tags:        []string{"Tags"},
	}, s.handleTagSeries)

	huma.Register(s.api, huma.Operation{
		OperationID: "untag-series",
		Method:      http.MethodDelete,
		Path:        "/api/v1/series/{id}/tags/{tagId}",
		Summary:     "Detach tag from series",
		Tags:        []string{"Tags"},
	}, s.handleUntagSeries)

	huma.Register(s.api, huma.Operation{
		OperationID: "sync-source-tags",
		Method:      http.MethodPost,
		Path:        "/api/v1/admin/tags/sync/{id}",
		Summary:     "Import a source's tag vocabulary",
		Tags:        []string{"Tags", "Admin"},
	}, s.handleSyncSourceTags)
}

// === DTOs ===

// TagEntry is the API projection of a tag.
type TagEntry struct {
	ID          string    `json:"id" doc:"Tag ID"`
	Name        string    `json:"name" doc:"Display name"`
	Slug        string    `json:"slug" doc:"Normalized name used for matching"`
	Group       string    `json:"group" doc:"Tag group"`
	Description string    `json:"description,omitempty" doc:"Curator description"`
	SourceRef   string    `json:"sourceRef,omitempty" doc:"Upstream tag this was imported from"`
	UsageCount  int       `json:"usageCount" doc:"Number of series carrying this tag"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CreateTagInput is the create-tag request.
type CreateTagInput struct {
	Body struct {
		Name        string `json:"name" validate:"required,min=1,max=100" doc:"Tag name"`
		Group       string `json:"group,omitempty" doc:"Tag group, defaults to custom"`
		Description string `json:"description,omitempty" validate:"omitempty,max=500" doc:"Curator description"`
	}
}

// CreateTagOutput reports the created or existing tag.
type CreateTagOutput struct {
	Status int
	Body   struct {
		Tag     TagEntry `json:"tag"`
		Created bool     `json:"created" doc:"False when the tag already existed"`
	}
}

// ListTagsInput filters the tag listing.
type ListTagsInput struct {
	Query   string `query:"q" doc:"Substring filter on the normalized name"`
	Group   string `query:"group" doc:"Restrict to one tag group"`
	Popular bool   `query:"popular" doc:"Return only the most used tags"`
	Limit   int    `query:"limit" default:"50" minimum:"1" maximum:"500" doc:"Max results"`
}

// TagListOutput wraps a tag listing.
type TagListOutput struct {
	Body struct {
		Total int        `json:"total"`
		Tags  []TagEntry `json:"tags"`
	}
}

// TagOutput wraps one tag.
type TagOutput struct {
	Body TagEntry
}

// TagStatsOutput wraps tag index statistics.
type TagStatsOutput struct {
	Body tags.Stats
}

// TagIntersectInput names the tags to intersect.
type TagIntersectInput struct {
	IDs string `query:"ids" validate:"required" doc:"Comma-separated tag IDs"`
}

// TagIntersectOutput lists series carrying every requested tag.
type TagIntersectOutput struct {
	Body struct {
		SeriesIDs []string `json:"seriesIds"`
	}
}

// SeriesTagInput addresses one series/tag pair.
type SeriesTagInput struct {
	ID    string `path:"id" doc:"Series ID"`
	TagID string `path:"tagId" doc:"Tag ID"`
}

// SyncTagsOutput reports an import run.
type SyncTagsOutput struct {
	Body struct {
		Source  string `json:"source" doc:"Source the vocabulary came from"`
		Created int    `json:"created" doc:"Tags that did not exist before"`
	}
}

// === Handlers ===

func (s *Server) handleCreateTag(ctx context.Context, input *CreateTagInput) (*CreateTagOutput, error) {
	group := domain.ParseTagGroup(input.Body.Group)
	tag, created, err := s.deps.Tags.Create(ctx, input.Body.Name, group, input.Body.Description)
	if err != nil {
		return nil, err
	}

	out := &CreateTagOutput{Status: http.StatusOK}
	if created {
		out.Status = http.StatusCreated
	}
	out.Body.Tag = toTagEntry(tag)
	out.Body.Created = created
	return out, nil
}

func (s *Server) handleListTags(ctx context.Context, input *ListTagsInput) (*TagListOutput, error) {
	var (
		list []domain.Tag
		err  error
	)
	switch {
	case input.Query != "":
		list, err = s.deps.Tags.Search(ctx, input.Query, input.Limit)
	case input.Group != "":
		list, err = s.deps.Tags.ByGroup(ctx, domain.ParseTagGroup(input.Group))
	case input.Popular:
		list, err = s.deps.Tags.Popular(ctx, input.Limit)
	default:
		list, err = s.deps.Tags.All(ctx)
	}
	if err != nil {
		return nil, err
	}
	if input.Limit > 0 && len(list) > input.Limit {
		list = list[:input.Limit]
	}

	out := &TagListOutput{}
	out.Body.Total = len(list)
	out.Body.Tags = make([]TagEntry, 0, len(list))
	for i := range list {
		out.Body.Tags = append(out.Body.Tags, toTagEntry(&list[i]))
	}
	return out, nil
}

func (s *Server) handleTagStats(ctx context.Context, _ *struct{}) (*TagStatsOutput, error) {
	stats, err := s.deps.Tags.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return &TagStatsOutput{Body: *stats}, nil
}

func (s *Server) handleTagIntersect(ctx context.Context, input *TagIntersectInput) (*TagIntersectOutput, error) {
	ids := splitCSV(input.IDs)
	if len(ids) == 0 {
		return nil, errors.Validation("at least one tag id is required")
	}

	seriesIDs, err := s.deps.Tags.SeriesByTags(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := &TagIntersectOutput{}
	out.Body.SeriesIDs = seriesIDs
	if out.Body.SeriesIDs == nil {
		out.Body.SeriesIDs = []string{}
	}
	return out, nil
}

func (s *Server) handleGetTag(ctx context.Context, input *IDInput) (*TagOutput, error) {
	tag, err := s.deps.Tags.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &TagOutput{Body: toTagEntry(tag)}, nil
}

func (s *Server) handleDeleteTag(ctx context.Context, input *IDInput) (*MessageOutput, error) {
	if err := s.deps.Tags.Delete(ctx, input.ID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "tag deleted"}}, nil
}

func (s *Server) handleSeriesTags(ctx context.Context, input *IDInput) (*TagListOutput, error) {
	list, err := s.deps.Tags.TagsForSeries(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	out := &TagListOutput{}
	out.Body.Total = len(list)
	out.Body.Tags = make([]TagEntry, 0, len(list))
	for i := range list {
		out.Body.Tags = append(out.Body.Tags, toTagEntry(&list[i]))
	}
	return out, nil
}

func (s *Server) handleTagSeries(ctx context.Context, input *SeriesTagInput) (*MessageOutput, error) {
	// The series must be known locally before it can be curated.
	if _, err := s.deps.Store.GetSeries(ctx, input.ID); err != nil {
		return nil, err
	}
	if err := s.deps.Tags.TagSeries(ctx, input.ID, input.TagID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "tag attached"}}, nil
}

func (s *Server) handleUntagSeries(ctx context.Context, input *SeriesTagInput) (*MessageOutput, error) {
	if err := s.deps.Tags.UntagSeries(ctx, input.ID, input.TagID); err != nil {
		return nil, err
	}
	return &MessageOutput{Body: MessageResponse{Message: "tag detached"}}, nil
}

func (s *Server) handleSyncSourceTags(ctx context.Context, input *IDInput) (*SyncTagsOutput, error) {
	adapter, err := s.deps.Registry.Get(input.ID)
	if err != nil {
		return nil, err
	}

	lister, ok := adapter.(source.TagLister)
	if !ok {
		return nil, errors.Unsupported("source " + input.ID + " does not publish a tag vocabulary")
	}

	created, err := s.deps.Tags.SyncSourceTags(ctx, lister)
	if err != nil {
		return nil, err
	}

	out := &SyncTagsOutput{}
	out.Body.Source = input.ID
	out.Body.Created = created
	return out, nil
}

func toTagEntry(t *domain.Tag) TagEntry {
	return TagEntry{
		ID:          t.ID,
		Name:        t.Name,
		Slug:        t.NormalizedName,
		Group:       string(t.Group),
		Description: t.Description,
		SourceRef:   t.SourceRef,
		UsageCount:  t.UsageCount,
		CreatedAt:   t.CreatedAt,
	}
}
