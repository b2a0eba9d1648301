package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomihub/yomihub-server/internal/aggregate"
	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/fetch"
	"github.com/yomihub/yomihub-server/internal/library"
	"github.com/yomihub/yomihub-server/internal/media/pagecache"
	"github.com/yomihub/yomihub-server/internal/ratelimit"
	"github.com/yomihub/yomihub-server/internal/scrape"
	"github.com/yomihub/yomihub-server/internal/search"
	"github.com/yomihub/yomihub-server/internal/source"
	"github.com/yomihub/yomihub-server/internal/source/routing"
	"github.com/yomihub/yomihub-server/internal/store"
	"github.com/yomihub/yomihub-server/internal/store/statsdb"
	"github.com/yomihub/yomihub-server/internal/tags"
)

// fakeAdapter is a fully scriptable source for handler tests.
type fakeAdapter struct {
	info     source.Info
	series   map[string]*domain.Series
	listing  []domain.Series
	chapters map[string][]domain.Chapter
	pages    map[string][]domain.PageRef
	tagList  []domain.Tag
	probeErr error
}

func (f *fakeAdapter) Info() source.Info { return f.info }

func (f *fakeAdapter) Search(_ context.Context, query string, _ source.Options) ([]domain.Series, error) {
	var out []domain.Series
	for _, s := range f.listing {
		if query == "" || containsFold(s.Title, query) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeAdapter) Popular(context.Context, source.Options) ([]domain.Series, error) {
	return f.listing, nil
}

func (f *fakeAdapter) Latest(context.Context, source.Options) ([]domain.Series, error) {
	return f.listing, nil
}

func (f *fakeAdapter) Details(_ context.Context, nativeID string) (*domain.Series, error) {
	s, ok := f.series[nativeID]
	if !ok {
		return nil, errors.NotFoundf("series %s", nativeID)
	}
	clone := *s
	return &clone, nil
}

func (f *fakeAdapter) Chapters(_ context.Context, nativeID string) ([]domain.Chapter, error) {
	return f.chapters[nativeID], nil
}

func (f *fakeAdapter) ChapterPages(_ context.Context, nativeID, chapterID string) ([]domain.PageRef, error) {
	pages, ok := f.pages[nativeID+"/"+chapterID]
	if !ok {
		return nil, errors.NotFoundf("chapter %s", chapterID)
	}
	return pages, nil
}

func (f *fakeAdapter) CheckConnectivity(context.Context) error { return f.probeErr }

func (f *fakeAdapter) Tags(context.Context) ([]domain.Tag, error) { return f.tagList, nil }

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

type testServer struct {
	*Server
	api   humatest.TestAPI
	store *store.Store
	tags  *tags.Index
	fake  *fakeAdapter
}

func testSeries(native, title string) domain.Series {
	return domain.Series{
		ID:       domain.SeriesID("fake", native),
		SourceID: "fake",
		Slug:     native,
		Title:    title,
		Status:   domain.StatusOngoing,
		Language: "en",
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	fake := &fakeAdapter{
		info: source.Info{
			ID:   "fake",
			Name: "Fake Source",
			Caps: source.CapSearch | source.CapPopular | source.CapLatest |
				source.CapDetails | source.CapChapters | source.CapPages,
		},
		series:   map[string]*domain.Series{},
		chapters: map[string][]domain.Chapter{},
		pages:    map[string][]domain.PageRef{},
	}

	st, err := store.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	idx, err := search.NewIndex(search.Options{DataPath: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	st.SetSearchIndexer(idx)

	tagIdx, err := tags.New(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { tagIdx.Close() })

	stats, err := statsdb.Open(filepath.Join(t.TempDir(), "stats.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { stats.Close() })

	fetcher := fetch.NewClient(ratelimit.New(0), nil)
	pages, err := pagecache.New(t.TempDir(), 1<<20, fetcher, nil)
	require.NoError(t, err)

	registry := source.NewRegistry(fake)
	orchestrator := aggregate.NewOrchestrator(registry, routing.Static(nil, nil), nil, 5*time.Second)
	scraper := scrape.New(registry, st, stats, nil, nil)
	lib := library.NewService(st, pages, nil, tagIdx, nil)

	s := NewServer(Dependencies{
		Store:        st,
		Registry:     registry,
		Orchestrator: orchestrator,
		Search:       idx,
		Tags:         tagIdx,
		Pages:        pages,
		Stats:        stats,
		Scraper:      scraper,
		Library:      lib,
		Logger:       nil,
	})

	return &testServer{
		Server: s,
		api:    humatest.Wrap(t, s.API()),
		store:  st,
		tags:   tagIdx,
		fake:   fake,
	}
}

func decodeBody[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out), "body: %s", resp.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["sources"])
}

func TestCatalogSearch_AggregatesAndWritesThrough(t *testing.T) {
	ts := newTestServer(t)
	ts.fake.listing = []domain.Series{
		testSeries("one", "Tower of Dawn"),
		testSeries("two", "Garden of Words"),
	}

	resp := ts.api.Get("/api/v1/catalog/search?q=tower&limit=20")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decodeBody[CatalogResponse](t, resp)
	require.Len(t, body.Series, 1)
	assert.Equal(t, "fake:one", body.Series[0].ID)
	assert.False(t, body.Meta.Cached)
	assert.Equal(t, []string{"fake"}, body.Meta.Sources)
	assert.Equal(t, 1, body.Meta.SourceResultCounts["fake"])

	// The result was written through to the local catalog.
	saved, err := ts.store.GetSeries(context.Background(), "fake:one")
	require.NoError(t, err)
	assert.Equal(t, "Tower of Dawn", saved.Title)
}

func TestCatalogSearch_ServesWarmCache(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	for i := range 25 {
		s := testSeries(string(rune('a'+i)), "Dragon Quest")
		require.NoError(t, ts.store.SaveSeries(ctx, &s))
	}

	resp := ts.api.Get("/api/v1/catalog/search?q=dragon&limit=20")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decodeBody[CatalogResponse](t, resp)
	assert.True(t, body.Meta.Cached)
	assert.Len(t, body.Series, 20)
}

func TestCatalogSearch_RejectsBadPagination(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.api.Get("/api/v1/catalog/search?q=x&limit=0")
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, string(errors.CodeValidation), body["code"])
}

func TestGetSeries_FetchesOnMiss(t *testing.T) {
	ts := newTestServer(t)
	detail := testSeries("one", "Tower of Dawn")
	detail.Description = "A long climb."
	ts.fake.series["one"] = &detail

	resp := ts.api.Get("/api/v1/series/fake:one")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decodeBody[SeriesDetail](t, resp)
	assert.Equal(t, "Tower of Dawn", body.Title)
	assert.Equal(t, "A long climb.", body.Description)
	assert.Equal(t, int64(1), body.LocalViews)

	// Second read is local and still counts a view.
	resp = ts.api.Get("/api/v1/series/fake:one")
	require.Equal(t, http.StatusOK, resp.Code)
	body = decodeBody[SeriesDetail](t, resp)
	assert.Equal(t, int64(2), body.LocalViews)
}

func TestGetSeries_UnknownSource(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.api.Get("/api/v1/series/ghost:1")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestListChapters_FetchesAndOrders(t *testing.T) {
	ts := newTestServer(t)
	s := testSeries("one", "Tower of Dawn")
	ts.fake.series["one"] = &s
	ts.fake.chapters["one"] = []domain.Chapter{
		{ID: "c2", Number: 2},
		{ID: "c1", Number: 1},
		{ID: "c15", Number: 1.5},
	}

	resp := ts.api.Get("/api/v1/series/fake:one/chapters")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Total    int              `json:"total"`
		Chapters []ChapterSummary `json:"chapters"`
		Cached   bool             `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Equal(t, 3, body.Total)
	assert.False(t, body.Cached)
	assert.Equal(t, []float64{1, 1.5, 2}, []float64{
		body.Chapters[0].Number, body.Chapters[1].Number, body.Chapters[2].Number,
	})

	// The second read is served from the store.
	resp = ts.api.Get("/api/v1/series/fake:one/chapters?order=desc")
	require.Equal(t, http.StatusOK, resp.Code)
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.True(t, body.Cached)
	assert.Equal(t, float64(2), body.Chapters[0].Number)
}

func TestChapterPages_ResolvesAndReportsCacheState(t *testing.T) {
	img := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("imagebytes")) //nolint:errcheck // test server
	}))
	defer img.Close()

	ts := newTestServer(t)
	s := testSeries("one", "Tower of Dawn")
	ts.fake.series["one"] = &s
	ts.fake.chapters["one"] = []domain.Chapter{{ID: "c1", Number: 1}}
	ts.fake.pages["one/c1"] = []domain.PageRef{
		{Index: 1, RemoteURL: img.URL + "/1.jpg"},
		{Index: 2, RemoteURL: img.URL + "/2.jpg"},
	}

	resp := ts.api.Get("/api/v1/series/fake:one/chapters/c1/pages")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		PageCount int         `json:"pageCount"`
		Pages     []PageEntry `json:"pages"`
		Cached    bool        `json:"cached"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, 2, body.PageCount)
	assert.False(t, body.Cached)
	assert.Equal(t, img.URL+"/1.jpg", body.Pages[0].URL)

	// The page list was persisted with the chapter.
	chapter, err := ts.store.GetChapter(context.Background(), "fake:one", "c1")
	require.NoError(t, err)
	assert.Len(t, chapter.Pages, 2)
}

func TestSources_ListAndStatus(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.api.Get("/api/v1/sources")
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Sources []SourceEntry `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list.Sources, 1)
	assert.Equal(t, "fake", list.Sources[0].ID)
	assert.Contains(t, list.Sources[0].Capabilities, "search")
	assert.Contains(t, list.Sources[0].Capabilities, "pages")

	resp = ts.api.Get("/api/v1/sources/fake/status")
	require.Equal(t, http.StatusOK, resp.Code)
	status := decodeBody[source.Status](t, resp)
	assert.True(t, status.Online)

	ts.fake.probeErr = errors.Fetch("upstream down")
	resp = ts.api.Get("/api/v1/sources/fake/status")
	require.Equal(t, http.StatusOK, resp.Code)
	status = decodeBody[source.Status](t, resp)
	assert.False(t, status.Online)
	assert.Contains(t, status.Error, "upstream down")

	resp = ts.api.Get("/api/v1/sources/nope/status")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestTags_CreateAttachIntersect(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	for _, native := range []string{"one", "two"} {
		s := testSeries(native, "Series "+native)
		require.NoError(t, ts.store.SaveSeries(ctx, &s))
	}

	resp := ts.api.Post("/api/v1/tags", map[string]any{"name": "Slow Burn", "group": "theme"})
	require.Equal(t, http.StatusCreated, resp.Code)
	var created struct {
		Tag     TagEntry `json:"tag"`
		Created bool     `json:"created"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.True(t, created.Created)
	assert.Equal(t, "slow-burn", created.Tag.Slug)

	// Creating it again is idempotent.
	resp = ts.api.Post("/api/v1/tags", map[string]any{"name": "SLOW BURN"})
	require.Equal(t, http.StatusOK, resp.Code)

	tagID := created.Tag.ID
	resp = ts.api.Put("/api/v1/series/fake:one/tags/" + tagID)
	require.Equal(t, http.StatusOK, resp.Code)
	resp = ts.api.Put("/api/v1/series/fake:two/tags/" + tagID)
	require.Equal(t, http.StatusOK, resp.Code)

	// Tagging an unknown series fails before touching the index.
	resp = ts.api.Put("/api/v1/series/fake:ghost/tags/" + tagID)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	resp = ts.api.Get("/api/v1/tags/intersect?ids=" + tagID)
	require.Equal(t, http.StatusOK, resp.Code)
	var intersect struct {
		SeriesIDs []string `json:"seriesIds"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &intersect))
	assert.ElementsMatch(t, []string{"fake:one", "fake:two"}, intersect.SeriesIDs)

	resp = ts.api.Delete("/api/v1/series/fake:two/tags/" + tagID)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/series/fake:one/tags")
	require.Equal(t, http.StatusOK, resp.Code)
	var onSeries struct {
		Total int        `json:"total"`
		Tags  []TagEntry `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &onSeries))
	require.Equal(t, 1, onSeries.Total)
	assert.Equal(t, 1, onSeries.Tags[0].UsageCount)
}

func TestTags_SyncFromSource(t *testing.T) {
	ts := newTestServer(t)
	ts.fake.tagList = []domain.Tag{
		{Name: "Isekai", Group: domain.GroupGenre, SourceRef: "fake:t1"},
	}

	resp := ts.api.Post("/api/v1/admin/tags/sync/fake")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Source  string `json:"source"`
		Created int    `json:"created"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "fake", body.Source)
	assert.Equal(t, 1, body.Created)
}

func TestLocalSearch_FindsSavedSeries(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	s := testSeries("one", "Berserk of Gluttony")
	s.Author = "Ichika Isshiki"
	require.NoError(t, ts.store.SaveSeries(ctx, &s))

	resp := ts.api.Get("/api/v1/search?q=gluttony")
	require.Equal(t, http.StatusOK, resp.Code)

	body := decodeBody[LocalSearchResponse](t, resp)
	require.EqualValues(t, 1, body.Total)
	assert.Equal(t, "fake:one", body.Hits[0].ID)
}

func TestCache_StatsAndClear(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.api.Get("/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, resp.Code)
	var stats struct {
		SizeBytes int64 `json:"sizeBytes"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &stats))
	assert.Zero(t, stats.SizeBytes)

	resp = ts.api.Delete("/api/v1/cache")
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/cache/clean")
	require.Equal(t, http.StatusOK, resp.Code)
	var clean pagecache.CleanResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &clean))
	assert.False(t, clean.Triggered)
}

func TestScrape_TriggerAndStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.fake.listing = []domain.Series{testSeries("one", "Tower of Dawn")}

	resp := ts.api.Post("/api/v1/admin/scrape")
	require.Equal(t, http.StatusOK, resp.Code)

	// The sweep against the in-memory fake finishes quickly.
	require.Eventually(t, func() bool {
		status := ts.api.Get("/api/v1/admin/scrape/status")
		if status.Code != http.StatusOK {
			return false
		}
		var body scrape.SweepStatus
		if err := json.Unmarshal(status.Body.Bytes(), &body); err != nil {
			return false
		}
		return !body.Running && len(body.Runs) == 1
	}, 5*time.Second, 20*time.Millisecond)

	saved, err := ts.store.GetSeries(context.Background(), "fake:one")
	require.NoError(t, err)
	assert.Equal(t, "Tower of Dawn", saved.Title)
}

func TestLibrary_UploadAndDelete(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.api.Post("/api/v1/admin/series", map[string]any{
		"title": "  My Webcomic  ",
		"chapters": []map[string]any{
			{"number": 1, "pages": []string{"https://img.example/1.png"}},
		},
	})
	require.Equal(t, http.StatusCreated, resp.Code, "body: %s", resp.Body.String())

	body := decodeBody[SeriesSummary](t, resp)
	assert.Equal(t, "local", body.SourceID)
	assert.Equal(t, "My Webcomic", body.Title)

	resp = ts.api.Get("/api/v1/series/" + body.ID + "/chapters")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/admin/series/" + body.ID)
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Delete("/api/v1/admin/series/" + body.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestLibrary_UploadRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.api.Post("/api/v1/admin/series", map[string]any{
		"title":    "",
		"coverUrl": "not-a-url",
	})
	require.Equal(t, http.StatusBadRequest, resp.Code, "body: %s", resp.Body.String())

	var body struct {
		Code    string            `json:"code"`
		Details map[string]string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION", body.Code)
	assert.Contains(t, body.Details, "title")
	assert.Contains(t, body.Details, "coverUrl")
}

func TestUsageStats(t *testing.T) {
	ts := newTestServer(t)
	s := testSeries("one", "Tower of Dawn")
	require.NoError(t, ts.store.SaveSeries(context.Background(), &s))

	for range 3 {
		resp := ts.api.Get("/api/v1/series/fake:one")
		require.Equal(t, http.StatusOK, resp.Code)
	}

	resp := ts.api.Get("/api/v1/stats")
	require.Equal(t, http.StatusOK, resp.Code)

	var body struct {
		Sources   []statsdb.SourceStats `json:"sources"`
		TopSeries map[string]int64      `json:"topSeries"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	require.Len(t, body.Sources, 1)
	assert.Equal(t, int64(3), body.Sources[0].TotalViews)
	assert.Equal(t, int64(3), body.TopSeries["fake:one"])
}
