package routing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTable = `{
  "categories": {
    "manga": {"sources": ["mangadex"]},
    "doujinshi": {"sources": ["nhentai", "hitomi", "ehentai"], "adult": true}
  },
  "default": ["mangadex"]
}`

func writeTable(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "routing.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	table, err := Load(writeTable(t, sampleTable), nil)
	require.NoError(t, err)

	ids, adult, ok := table.Resolve("doujinshi")
	assert.True(t, ok)
	assert.True(t, adult)
	assert.Equal(t, []string{"nhentai", "hitomi", "ehentai"}, ids)

	ids, adult, ok = table.Resolve("comics")
	assert.False(t, ok)
	assert.False(t, adult)
	assert.Equal(t, []string{"mangadex"}, ids)
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(writeTable(t, "{not json"), nil)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"), nil)
	assert.Error(t, err)
}

func TestTable_WatchReload(t *testing.T) {
	path := writeTable(t, sampleTable)
	table, err := Load(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, table.Watch(ctx))

	updated := `{"categories": {"manga": {"sources": ["mangadex", "hitomi"]}}, "default": []}`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		ids, _, _ := table.Resolve("manga")
		return len(ids) == 2
	}, 2*time.Second, 20*time.Millisecond)
}

func TestTable_WatchKeepsSnapshotOnBadReload(t *testing.T) {
	path := writeTable(t, sampleTable)
	table, err := Load(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, table.Watch(ctx))

	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))
	time.Sleep(200 * time.Millisecond)

	ids, _, ok := table.Resolve("manga")
	assert.True(t, ok)
	assert.Equal(t, []string{"mangadex"}, ids)
}

func TestStatic(t *testing.T) {
	table := Static(map[string]Route{
		"manga": {Sources: []string{"a", "b"}},
	}, []string{"a"})

	ids, _, ok := table.Resolve("manga")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, ids)

	assert.ElementsMatch(t, []string{"manga"}, table.Categories())
}
