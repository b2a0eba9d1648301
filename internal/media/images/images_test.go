package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomihub/yomihub-server/internal/fetch"
	"github.com/yomihub/yomihub-server/internal/ratelimit"
)

// testPNG encodes a small gradient image.
func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := range height {
		for x := range width {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 7), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStorage_RoundTrip(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)

	data := testPNG(t, 10, 10)
	require.NoError(t, storage.Save("mangadex:abc", data))
	assert.True(t, storage.Exists("mangadex:abc"))

	got, err := storage.Get("mangadex:abc")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	hash, err := storage.Hash("mangadex:abc")
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	require.NoError(t, storage.Delete("mangadex:abc"))
	assert.False(t, storage.Exists("mangadex:abc"))
	// Deleting again is fine.
	require.NoError(t, storage.Delete("mangadex:abc"))
}

func TestStorage_PathIsColonFree(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	assert.NotContains(t, storage.Path("mangadex:abc"), ":")
}

func TestComputeBlurHash(t *testing.T) {
	hash, err := ComputeBlurHash(testPNG(t, 200, 300))
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	_, err = ComputeBlurHash([]byte("not an image"))
	assert.Error(t, err)
}

func TestThumbnail(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 400, 200))

	thumb := Thumbnail(src, 100, 100)
	assert.Equal(t, 100, thumb.Bounds().Dx())
	assert.Equal(t, 50, thumb.Bounds().Dy())

	// Already within bounds: unchanged.
	small := image.NewRGBA(image.Rect(0, 0, 32, 32))
	assert.Equal(t, small, Thumbnail(small, 100, 100))
}

func TestProcessor_ProcessCover(t *testing.T) {
	data := testPNG(t, 120, 180)
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write(data)
	}))
	defer srv.Close()

	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	p := NewProcessor(storage, fetch.NewClient(ratelimit.New(0), nil), nil)

	hash, err := p.ProcessCover(context.Background(), "mangadex:abc", srv.URL+"/cover.png", nil, false)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.True(t, storage.Exists("mangadex:abc"))

	// Second call reuses the stored cover.
	again, err := p.ProcessCover(context.Background(), "mangadex:abc", srv.URL+"/cover.png", nil, false)
	require.NoError(t, err)
	assert.Equal(t, hash, again)
	assert.Equal(t, 1, requests)
}

func TestProcessor_EmptyURL(t *testing.T) {
	storage, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	p := NewProcessor(storage, fetch.NewClient(ratelimit.New(0), nil), nil)

	hash, err := p.ProcessCover(context.Background(), "x:1", "", nil, false)
	require.NoError(t, err)
	assert.Empty(t, hash)
}
