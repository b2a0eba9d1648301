package scrape

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/source"
	"github.com/yomihub/yomihub-server/internal/store"
	"github.com/yomihub/yomihub-server/internal/store/statsdb"
)

type stubAdapter struct {
	id       string
	caps     source.Capability
	popular  []domain.Series
	latest   []domain.Series
	chapters []domain.Chapter
	listErr  error
}

func (s *stubAdapter) Info() source.Info {
	return source.Info{ID: s.id, Name: s.id, Caps: s.caps}
}

func (s *stubAdapter) Search(context.Context, string, source.Options) ([]domain.Series, error) {
	return nil, errors.Unsupported("search not supported")
}

func (s *stubAdapter) Popular(_ context.Context, opts source.Options) ([]domain.Series, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if opts.Page > 1 {
		return nil, nil
	}
	return s.popular, nil
}

func (s *stubAdapter) Latest(_ context.Context, opts source.Options) ([]domain.Series, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	if opts.Page > 1 {
		return nil, nil
	}
	return s.latest, nil
}

func (s *stubAdapter) Details(context.Context, string) (*domain.Series, error) {
	return nil, errors.NotFoundf("not found")
}

func (s *stubAdapter) Chapters(context.Context, string) ([]domain.Chapter, error) {
	return s.chapters, nil
}

func (s *stubAdapter) ChapterPages(context.Context, string, string) ([]domain.PageRef, error) {
	return nil, errors.Unsupported("pages not supported")
}

func (s *stubAdapter) CheckConnectivity(context.Context) error { return nil }

func mkSeries(sourceID, native string) domain.Series {
	return domain.Series{
		ID:       domain.SeriesID(sourceID, native),
		SourceID: sourceID,
		Slug:     native,
		Title:    "Series " + native,
	}
}

func newTestScraper(t *testing.T, opts *Options, adapters ...source.Adapter) (*Scraper, *store.Store, *statsdb.Store) {
	t.Helper()
	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	stats, err := statsdb.Open(filepath.Join(t.TempDir(), "stats.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { stats.Close() })

	return New(source.NewRegistry(adapters...), st, stats, nil, opts), st, stats
}

func TestRun_WritesListingsThrough(t *testing.T) {
	alpha := &stubAdapter{
		id:      "alpha",
		caps:    source.CapPopular | source.CapLatest,
		popular: []domain.Series{mkSeries("alpha", "1"), mkSeries("alpha", "2")},
		latest:  []domain.Series{mkSeries("alpha", "3")},
	}
	s, st, stats := newTestScraper(t, nil, alpha)
	ctx := context.Background()

	require.NoError(t, s.Run(ctx))

	all, err := st.AllSeries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	run, err := stats.LastScrape(ctx, "alpha")
	require.NoError(t, err)
	require.NotNil(t, run.FinishedAt)
	assert.Equal(t, int64(3), run.SeriesSeen)
	assert.Zero(t, run.Errors)
	assert.False(t, s.Running())
}

func TestRun_SourceFailureDoesNotStopSweep(t *testing.T) {
	broken := &stubAdapter{
		id:      "broken",
		caps:    source.CapPopular,
		listErr: errors.Fetch("upstream down"),
	}
	healthy := &stubAdapter{
		id:      "healthy",
		caps:    source.CapPopular,
		popular: []domain.Series{mkSeries("healthy", "1")},
	}
	s, st, stats := newTestScraper(t, nil, broken, healthy)
	ctx := context.Background()

	require.NoError(t, s.Run(ctx))

	all, err := st.AllSeries(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	run, err := stats.LastScrape(ctx, "broken")
	require.NoError(t, err)
	assert.Equal(t, int64(1), run.Errors)
}

func TestRun_RejectsOverlappingSweep(t *testing.T) {
	s, _, _ := newTestScraper(t, nil)

	s.running.Store(true)
	err := s.Run(context.Background())
	assert.True(t, errors.Is(err, errors.ErrConflict))
	s.running.Store(false)

	require.NoError(t, s.Run(context.Background()))
}

func TestRun_WithChapters(t *testing.T) {
	alpha := &stubAdapter{
		id:      "alpha",
		caps:    source.CapPopular | source.CapChapters,
		popular: []domain.Series{mkSeries("alpha", "1")},
		chapters: []domain.Chapter{
			{ID: "ch-1", Number: 1},
			{ID: "ch-2", Number: 2},
		},
	}
	s, st, _ := newTestScraper(t, &Options{WithChapters: true}, alpha)
	ctx := context.Background()

	require.NoError(t, s.Run(ctx))

	chapters, err := st.GetChapters(ctx, "alpha:1")
	require.NoError(t, err)
	assert.Len(t, chapters, 2)
}

func TestStatus(t *testing.T) {
	alpha := &stubAdapter{id: "alpha", caps: source.CapPopular}
	s, _, _ := newTestScraper(t, nil, alpha)
	ctx := context.Background()

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Running)
	assert.Empty(t, status.Runs)

	require.NoError(t, s.Run(ctx))

	status, err = s.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status.Runs, 1)
	assert.Equal(t, "alpha", status.Runs[0].SourceID)
}

func TestStart_Disabled(t *testing.T) {
	s, _, _ := newTestScraper(t, nil)
	// Zero interval must not spawn a loop; nothing to assert beyond not
	// hanging or panicking.
	s.Start(context.Background(), 0)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, s.Running())
}
