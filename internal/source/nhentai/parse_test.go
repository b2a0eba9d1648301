package nhentai

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomihub/yomihub-server/internal/source"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func TestParseGalleryList(t *testing.T) {
	results := parseGalleryList(loadFixture(t, "listing.html"))
	require.Len(t, results, 2)

	first := results[0]
	assert.Equal(t, "nhentai:512034", first.ID)
	assert.Equal(t, "512034", first.Slug)
	assert.Equal(t, "[Artist] Some Gallery Title (Comic Kairakuten)", first.Title)
	assert.Equal(t, "https://t3.nhentaimg.com/012/abcdef123/cover.jpg", first.CoverURL)
	assert.True(t, first.Adult)

	// No title attribute; falls back to the caption, entities decoded.
	second := results[1]
	assert.Equal(t, "nhentai:512035", second.ID)
	assert.Equal(t, "Second Gallery & Friends", second.Title)
}

func TestParseGalleryList_Empty(t *testing.T) {
	assert.Empty(t, parseGalleryList("<html><body>nothing here</body></html>"))
}

func TestParseGalleryDetail(t *testing.T) {
	s, pageCount := parseGalleryDetail(loadFixture(t, "gallery.html"), "512034")

	assert.Equal(t, "nhentai:512034", s.ID)
	assert.Equal(t, "[Artist] Some Gallery Title (Comic Kairakuten)", s.Title)
	assert.Equal(t, "https://t3.nhentaimg.com/012/abcdef123/cover.jpg", s.CoverURL)
	assert.Equal(t, []string{"big breasts", "vanilla"}, s.Tags)
	assert.Equal(t, "some artist", s.Artist)
	assert.Equal(t, 24, pageCount)
	assert.Equal(t, 1, s.ChapterCount)
	assert.True(t, s.Adult)
}

func TestParsePages_EmbeddedJSON(t *testing.T) {
	pages := parsePages(loadFixture(t, "gallery.html"))
	require.Len(t, pages, 3)

	assert.Equal(t, 1, pages[0].Index)
	assert.Equal(t, "https://i7.nhentaimg.com/012/abcdef123/1.jpg", pages[0].RemoteURL)
	// Extension code "p" maps to png.
	assert.Equal(t, "https://i7.nhentaimg.com/012/abcdef123/3.png", pages[2].RemoteURL)
}

func TestParsePages_ThumbnailFallback(t *testing.T) {
	html := `
		<a href="/g/99/2/"><img data-src="https://i2.example.com/99/x/2t.jpg" /></a>
		<a href="/g/99/1/"><img data-src="https://i2.example.com/99/x/1t.webp" /></a>
	`
	pages := parsePages(html)
	require.Len(t, pages, 2)

	// Sorted by page index, thumb suffix stripped.
	assert.Equal(t, 1, pages[0].Index)
	assert.Equal(t, "https://i2.example.com/99/x/1.webp", pages[0].RemoteURL)
	assert.Equal(t, "https://i2.example.com/99/x/2.jpg", pages[1].RemoteURL)
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		opts  source.Options
		want  string
	}{
		{name: "plain query", query: "vanilla", want: "vanilla"},
		{
			name:  "language filter",
			query: "milf",
			opts:  source.Options{Language: "english"},
			want:  "milf language:english",
		},
		{
			name: "tags and exclusions",
			opts: source.Options{IncludeTags: []string{"yuri"}, ExcludeTags: []string{"netorare", "rape"}},
			want: "yuri -netorare -rape",
		},
		{name: "all language ignored", opts: source.Options{Language: "all"}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildQuery(tt.query, tt.opts))
		})
	}
}
