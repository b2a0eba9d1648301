package hitomi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomihub/yomihub-server/internal/fetch"
	"github.com/yomihub/yomihub-server/internal/ratelimit"
	"github.com/yomihub/yomihub-server/internal/source"
)

const sampleGalleryJS = `var galleryinfo = {
	"title": "Sample Gallery",
	"japanese_title": "サンプル",
	"type": "doujinshi",
	"language": "english",
	"date": "2024-02-26 18:04:00-06",
	"tags": [{"tag": "full color"}, {"tag": "stockings"}],
	"artists": [{"artist": "someone"}],
	"groups": [{"group": "circle x"}],
	"parodys": [{"parody": "original"}],
	"characters": [],
	"files": [
		{"name": "001.jpg", "hash": "aabbccddeeff00112233445566778da1", "haswebp": 1, "hasavif": 0},
		{"name": "002.jpg", "hash": "aabbccddeeff00112233445566778000", "haswebp": 1, "hasavif": 0}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New(fetch.NewClient(ratelimit.New(0), nil), nil)
	client.ltnBase = server.URL
	return client
}

func TestClient_Latest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "index-all.nozomi"):
			// Two gallery IDs: 100 and 200.
			assert.Equal(t, "bytes=0-99", r.Header.Get("Range"))
			w.WriteHeader(http.StatusPartialContent)
			w.Write([]byte{0, 0, 0, 100, 0, 0, 0, 200})
		case strings.HasSuffix(r.URL.Path, "/galleries/100.js"),
			strings.HasSuffix(r.URL.Path, "/galleries/200.js"):
			w.Write([]byte(sampleGalleryJS))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	series, err := client.Latest(context.Background(), source.Options{})
	require.NoError(t, err)
	require.Len(t, series, 2)

	first := series[0]
	assert.Equal(t, "hitomi:100", first.ID)
	assert.Equal(t, "Sample Gallery", first.Title)
	assert.Equal(t, "english", first.Language)
	assert.Contains(t, first.Tags, "full color")
	assert.Contains(t, first.Tags, "original")
	assert.Equal(t, "someone", first.Artist)
	assert.Equal(t, "circle x", first.Author)
	assert.True(t, first.Adult)
	assert.Equal(t, "https://tn.gold-usergeneratedcontent.net/bigtn/100/474/aabbccddeeff00112233445566778da1.webp", first.CoverURL)
	assert.False(t, first.UpdatedAt.IsZero())
}

func TestClient_Latest_SkipsBrokenGalleries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "index-all.nozomi"):
			w.WriteHeader(http.StatusPartialContent)
			w.Write([]byte{0, 0, 0, 1, 0, 0, 0, 2})
		case strings.HasSuffix(r.URL.Path, "/galleries/1.js"):
			w.WriteHeader(http.StatusNotFound)
		case strings.HasSuffix(r.URL.Path, "/galleries/2.js"):
			w.Write([]byte(sampleGalleryJS))
		}
	})

	series, err := client.Latest(context.Background(), source.Options{})
	require.NoError(t, err)
	require.Len(t, series, 1)
	assert.Equal(t, "hitomi:2", series[0].ID)
}

func TestClient_Search_FallsBackToIndex(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		if strings.Contains(r.URL.Path, "/tag/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusPartialContent)
	})

	series, err := client.Search(context.Background(), "No Such Tag", source.Options{})
	require.NoError(t, err)
	assert.Empty(t, series)

	require.Len(t, paths, 2)
	assert.Contains(t, paths[0], "/tag/no_such_tag-all.nozomi")
	assert.Contains(t, paths[1], "/index-all.nozomi")
}

func TestClient_ChapterPages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/gg.js"):
			w.Write([]byte(sampleGG))
		case strings.Contains(r.URL.Path, "/galleries/"):
			w.Write([]byte(sampleGalleryJS))
		}
	})

	pages, err := client.ChapterPages(context.Background(), "42", "42")
	require.NoError(t, err)
	require.Len(t, pages, 2)

	assert.Equal(t, 1, pages[0].Index)
	assert.Equal(t, "https://w1.gold-usergeneratedcontent.net/1708999200/474/aabbccddeeff00112233445566778da1.webp", pages[0].RemoteURL)
	assert.Equal(t, "https://w1.gold-usergeneratedcontent.net/1708999200/0/aabbccddeeff00112233445566778000.webp", pages[1].RemoteURL)
}

func TestClient_Chapters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleGalleryJS))
	})

	chapters, err := client.Chapters(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, chapters, 1)

	ch := chapters[0]
	assert.Equal(t, "hitomi:42", ch.SeriesID)
	assert.Equal(t, float64(1), ch.Number)
	assert.Equal(t, 2, ch.PageCount)
	assert.Equal(t, "english", ch.Language)
}
