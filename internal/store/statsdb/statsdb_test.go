package statsdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomihub/yomihub-server/internal/errors"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "stats.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeriesViews_IncrementAndRead(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	views, err := s.SeriesViews(ctx, "mangadex:abc")
	require.NoError(t, err)
	assert.Zero(t, views)

	for range 3 {
		require.NoError(t, s.IncrementSeriesViews(ctx, "mangadex:abc"))
	}
	require.NoError(t, s.IncrementSeriesViews(ctx, "nhentai:99"))

	views, err = s.SeriesViews(ctx, "mangadex:abc")
	require.NoError(t, err)
	assert.Equal(t, int64(3), views)
}

func TestSeriesViews_MalformedID(t *testing.T) {
	s := newTestStore(t)
	err := s.IncrementSeriesViews(context.Background(), "no-source-prefix")
	assert.True(t, errors.Is(err, errors.ErrValidation))
}

func TestChapterViews(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IncrementChapterViews(ctx, "mangadex:abc", "ch-1"))
	require.NoError(t, s.IncrementChapterViews(ctx, "mangadex:abc", "ch-1"))
	require.NoError(t, s.IncrementChapterViews(ctx, "mangadex:abc", "ch-2"))

	views, err := s.ChapterViews(ctx, "mangadex:abc", "ch-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), views)

	views, err = s.ChapterViews(ctx, "mangadex:abc", "ch-3")
	require.NoError(t, err)
	assert.Zero(t, views)
}

func TestTopSeries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, s.IncrementSeriesViews(ctx, "mangadex:a"))
	}
	for range 2 {
		require.NoError(t, s.IncrementSeriesViews(ctx, "hitomi:7"))
	}
	require.NoError(t, s.IncrementSeriesViews(ctx, "ehentai:1_aa"))

	top, err := s.TopSeries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, int64(5), top["mangadex:a"])
	assert.Equal(t, int64(2), top["hitomi:7"])
}

func TestBySource(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.IncrementSeriesViews(ctx, "mangadex:a"))
	require.NoError(t, s.IncrementSeriesViews(ctx, "mangadex:a"))
	require.NoError(t, s.IncrementSeriesViews(ctx, "mangadex:b"))
	require.NoError(t, s.IncrementSeriesViews(ctx, "hitomi:7"))

	stats, err := s.BySource(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, SourceStats{SourceID: "hitomi", SeriesCount: 1, TotalViews: 1}, stats[0])
	assert.Equal(t, SourceStats{SourceID: "mangadex", SeriesCount: 2, TotalViews: 3}, stats[1])
}

func TestScrapeRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LastScrape(ctx, "mangadex")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.BeginScrape(ctx, "mangadex", started))

	run, err := s.LastScrape(ctx, "mangadex")
	require.NoError(t, err)
	assert.Equal(t, started, run.StartedAt)
	assert.Nil(t, run.FinishedAt)

	finished := started.Add(5 * time.Minute)
	require.NoError(t, s.FinishScrape(ctx, "mangadex", finished, 120, 3))

	run, err = s.LastScrape(ctx, "mangadex")
	require.NoError(t, err)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, finished, *run.FinishedAt)
	assert.Equal(t, int64(120), run.SeriesSeen)
	assert.Equal(t, int64(3), run.Errors)

	// A new begin resets the previous run record.
	require.NoError(t, s.BeginScrape(ctx, "mangadex", finished.Add(time.Hour)))
	run, err = s.LastScrape(ctx, "mangadex")
	require.NoError(t, err)
	assert.Nil(t, run.FinishedAt)
	assert.Zero(t, run.SeriesSeen)

	runs, err := s.ScrapeRuns(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
