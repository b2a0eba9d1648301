package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomihub/yomihub-server/internal/domain"
)

func newTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := NewIndex(Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func seedCatalog(t *testing.T, idx *Index) {
	t.Helper()
	now := time.Now()
	series := []domain.Series{
		{
			ID:        "mangadex:one-piece",
			SourceID:  "mangadex",
			Title:     "One Piece",
			AltTitles: []string{"ワンピース"},
			Author:    "Eiichiro Oda",
			Status:    domain.StatusOngoing,
			Tags:      []string{"adventure", "comedy"},
			Genres:    []string{"shounen"},
			Language:  "en",
			Rating:    4.8,
			Views:     5000,
			UpdatedAt: now,
		},
		{
			ID:        "mangadex:berserk",
			SourceID:  "mangadex",
			Title:     "Berserk",
			Author:    "Kentaro Miura",
			Status:    domain.StatusHiatus,
			Tags:      []string{"adventure", "horror"},
			Genres:    []string{"seinen"},
			Language:  "en",
			Rating:    4.9,
			Views:     3000,
			UpdatedAt: now.Add(-time.Hour),
		},
		{
			ID:        "nhentai:12345",
			SourceID:  "nhentai",
			Title:     "Midnight Gallery",
			Status:    domain.StatusCompleted,
			Tags:      []string{"comedy"},
			Language:  "ja",
			Adult:     true,
			UpdatedAt: now.Add(-2 * time.Hour),
		},
	}
	require.NoError(t, idx.IndexAll(context.Background(), series))
}

func TestSearch_TitleMatch(t *testing.T) {
	idx := newTestIndex(t)
	seedCatalog(t, idx)

	params := DefaultParams()
	params.Query = "berserk"
	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)

	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "mangadex:berserk", result.Hits[0].ID)
	assert.Equal(t, "Kentaro Miura", result.Hits[0].Author)
	assert.Equal(t, "hiatus", result.Hits[0].Status)
}

func TestSearch_FuzzyMatch(t *testing.T) {
	idx := newTestIndex(t)
	seedCatalog(t, idx)

	params := DefaultParams()
	params.Query = "bersrk" // one edit away
	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)

	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "mangadex:berserk", result.Hits[0].ID)
}

func TestSearch_AltTitleMatch(t *testing.T) {
	idx := newTestIndex(t)
	seedCatalog(t, idx)

	params := DefaultParams()
	params.Query = "ワンピース"
	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)

	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "mangadex:one-piece", result.Hits[0].ID)
}

func TestSearch_AdultExcludedByDefault(t *testing.T) {
	idx := newTestIndex(t)
	seedCatalog(t, idx)

	params := DefaultParams()
	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), result.Total)
	for _, hit := range result.Hits {
		assert.False(t, hit.Adult)
	}

	params.IncludeAdult = true
	result, err = idx.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), result.Total)
}

func TestSearch_TagFilterIsConjunctive(t *testing.T) {
	idx := newTestIndex(t)
	seedCatalog(t, idx)

	params := DefaultParams()
	params.IncludeAdult = true
	params.Tags = []string{"adventure", "comedy"}
	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, result.Hits, 1)
	assert.Equal(t, "mangadex:one-piece", result.Hits[0].ID)
}

func TestSearch_SourceFilter(t *testing.T) {
	idx := newTestIndex(t)
	seedCatalog(t, idx)

	params := DefaultParams()
	params.IncludeAdult = true
	params.Sources = []string{"nhentai"}
	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, result.Hits, 1)
	assert.Equal(t, "nhentai:12345", result.Hits[0].ID)
}

func TestSearch_SortByRating(t *testing.T) {
	idx := newTestIndex(t)
	seedCatalog(t, idx)

	params := DefaultParams()
	params.SortBy = "rating"
	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, result.Hits, 2)
	assert.Equal(t, "mangadex:berserk", result.Hits[0].ID)
	assert.Equal(t, "mangadex:one-piece", result.Hits[1].ID)
}

func TestSearch_MinRating(t *testing.T) {
	idx := newTestIndex(t)
	seedCatalog(t, idx)

	params := DefaultParams()
	params.MinRating = 4.85
	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, result.Hits, 1)
	assert.Equal(t, "mangadex:berserk", result.Hits[0].ID)
}

func TestSearch_Facets(t *testing.T) {
	idx := newTestIndex(t)
	seedCatalog(t, idx)

	params := DefaultParams()
	params.IncludeAdult = true
	result, err := idx.Search(context.Background(), params)
	require.NoError(t, err)

	require.NotNil(t, result.Facets)
	sources := map[string]int{}
	for _, f := range result.Facets.Sources {
		sources[f.Value] = f.Count
	}
	assert.Equal(t, 2, sources["mangadex"])
	assert.Equal(t, 1, sources["nhentai"])
}

func TestIndex_DeleteSeries(t *testing.T) {
	idx := newTestIndex(t)
	seedCatalog(t, idx)

	require.NoError(t, idx.DeleteSeries(context.Background(), "mangadex:berserk"))

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

func TestIndex_IndexSeriesUpdatesInPlace(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	series := &domain.Series{ID: "x:1", SourceID: "x", Title: "Old Title"}
	require.NoError(t, idx.IndexSeries(ctx, series))
	series.Title = "New Title"
	require.NoError(t, idx.IndexSeries(ctx, series))

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)

	params := DefaultParams()
	params.Query = "new title"
	result, err := idx.Search(ctx, params)
	require.NoError(t, err)
	require.NotEmpty(t, result.Hits)
	assert.Equal(t, "New Title", result.Hits[0].Title)
}

func TestIndex_Rebuild(t *testing.T) {
	idx := newTestIndex(t)
	seedCatalog(t, idx)

	require.NoError(t, idx.Rebuild())

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIndex_ReopenKeepsDocuments(t *testing.T) {
	dir := t.TempDir()

	idx, err := NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, idx.IndexSeries(context.Background(),
		&domain.Series{ID: "x:1", SourceID: "x", Title: "Persistent"}))
	require.NoError(t, idx.Close())

	idx, err = NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	defer idx.Close()

	count, err := idx.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
