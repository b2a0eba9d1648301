package pagecache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/fetch"
	"github.com/yomihub/yomihub-server/internal/ratelimit"
)

func newTestCache(t *testing.T, maxBytes int64) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), maxBytes, fetch.NewClient(ratelimit.New(0), nil), nil)
	require.NoError(t, err)
	return c
}

func pageServer(t *testing.T, body string, fails map[int]bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		base := strings.TrimSuffix(filepath.Base(r.URL.Path), filepath.Ext(r.URL.Path))
		if n, err := strconv.Atoi(base); err == nil && fails[n] {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloadImage_CachesAndIsIdempotent(t *testing.T) {
	c := newTestCache(t, 0)
	srv := pageServer(t, "image-bytes", nil)
	ctx := context.Background()

	page := domain.PageRef{Index: 1, RemoteURL: srv.URL + "/1.png"}
	path, err := c.DownloadImage(ctx, "mangadex:abc", "ch-1", page, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, filepath.Join("mangadex_abc", "ch-1", "1.png")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
	assert.True(t, c.IsCached("mangadex:abc", "ch-1", 1))

	// Second call returns the existing file without refetching.
	srv.Close()
	again, err := c.DownloadImage(ctx, "mangadex:abc", "ch-1", page, nil)
	require.NoError(t, err)
	assert.Equal(t, path, again)
}

func TestDownloadImage_FetchFailureLeavesNoFile(t *testing.T) {
	c := newTestCache(t, 0)
	srv := pageServer(t, "x", map[int]bool{1: true})

	_, err := c.DownloadImage(context.Background(), "mangadex:abc", "ch-1",
		domain.PageRef{Index: 1, RemoteURL: srv.URL + "/1.jpg"}, nil)
	require.Error(t, err)
	assert.False(t, c.IsCached("mangadex:abc", "ch-1", 1))
}

func TestResolveURL(t *testing.T) {
	c := newTestCache(t, 0)
	srv := pageServer(t, "img", nil)
	ctx := context.Background()

	remote := srv.URL + "/3.jpg"
	loc, cached := c.ResolveURL("x:1", "ch-1", 3, remote)
	assert.False(t, cached)
	assert.Equal(t, remote, loc)

	path, err := c.DownloadImage(ctx, "x:1", "ch-1", domain.PageRef{Index: 3, RemoteURL: remote}, nil)
	require.NoError(t, err)

	loc, cached = c.ResolveURL("x:1", "ch-1", 3, remote)
	assert.True(t, cached)
	assert.Equal(t, path, loc)
}

func TestDownloadChapter_CountsAndProgress(t *testing.T) {
	c := newTestCache(t, 0)
	srv := pageServer(t, "page-data", map[int]bool{2: true})
	ctx := context.Background()

	chapter := &domain.Chapter{
		ID: "ch-1",
		Pages: []domain.PageRef{
			{Index: 1, RemoteURL: srv.URL + "/1.jpg"},
			{Index: 2, RemoteURL: srv.URL + "/2.jpg"},
			{Index: 3, RemoteURL: srv.URL + "/3.jpg"},
		},
	}

	// Pre-cache page 3 so it is skipped.
	_, err := c.DownloadImage(ctx, "x:1", "ch-1", chapter.Pages[2], nil)
	require.NoError(t, err)

	var calls []int
	result, err := c.DownloadChapter(ctx, "x:1", chapter, nil, func(done, total int) {
		require.Equal(t, 3, total)
		calls = append(calls, done)
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, int64(len("page-data")), result.TotalSize)
	assert.Equal(t, []int{1, 2, 3}, calls)
}

func TestSizeAndClear(t *testing.T) {
	c := newTestCache(t, 0)
	srv := pageServer(t, "0123456789", nil)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := c.DownloadImage(ctx, "x:1", "ch-1",
			domain.PageRef{Index: i, RemoteURL: srv.URL + "/" + string(rune('0'+i)) + ".jpg"}, nil)
		require.NoError(t, err)
	}

	size, err := c.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(30), size)

	require.NoError(t, c.Clear())
	size, err = c.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestClean_EvictsLeastRecentlyUsedSeries(t *testing.T) {
	// Budget of 100 bytes: trigger at 90, target 70.
	c := newTestCache(t, 100)
	srv := pageServer(t, strings.Repeat("x", 40), nil)
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	for i, seriesID := range []string{"x:old", "x:mid", "x:new"} {
		_, err := c.DownloadImage(ctx, seriesID, "ch-1",
			domain.PageRef{Index: 1, RemoteURL: srv.URL + "/1.jpg"}, nil)
		require.NoError(t, err)
		// Stagger access times, oldest first.
		stamp := old.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(filepath.Join(c.Root(), dirName(seriesID)), stamp, stamp))
	}

	result, err := c.Clean(ctx)
	require.NoError(t, err)

	assert.True(t, result.Triggered)
	assert.Equal(t, 2, result.EvictedSeries)
	assert.Equal(t, int64(80), result.FreedBytes)
	assert.False(t, c.IsCached("x:old", "ch-1", 1))
	assert.False(t, c.IsCached("x:mid", "ch-1", 1))
	assert.True(t, c.IsCached("x:new", "ch-1", 1))
}

func TestClean_BelowThresholdIsNoop(t *testing.T) {
	c := newTestCache(t, 1024*1024)
	srv := pageServer(t, "tiny", nil)

	_, err := c.DownloadImage(context.Background(), "x:1", "ch-1",
		domain.PageRef{Index: 1, RemoteURL: srv.URL + "/1.jpg"}, nil)
	require.NoError(t, err)

	result, err := c.Clean(context.Background())
	require.NoError(t, err)
	assert.False(t, result.Triggered)
	assert.Zero(t, result.EvictedSeries)
	assert.True(t, c.IsCached("x:1", "ch-1", 1))
}

func TestRemoveSeries(t *testing.T) {
	c := newTestCache(t, 0)
	srv := pageServer(t, "img", nil)

	_, err := c.DownloadImage(context.Background(), "x:1", "ch-1",
		domain.PageRef{Index: 1, RemoteURL: srv.URL + "/1.jpg"}, nil)
	require.NoError(t, err)

	require.NoError(t, c.RemoveSeries("x:1"))
	assert.False(t, c.IsCached("x:1", "ch-1", 1))
}
