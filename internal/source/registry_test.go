package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
)

type fakeAdapter struct {
	info     Info
	probeErr error
}

func (f *fakeAdapter) Info() Info { return f.info }

func (f *fakeAdapter) Search(ctx context.Context, query string, opts Options) ([]domain.Series, error) {
	return nil, errors.Unsupported("search")
}

func (f *fakeAdapter) Popular(ctx context.Context, opts Options) ([]domain.Series, error) {
	return nil, errors.Unsupported("popular")
}

func (f *fakeAdapter) Latest(ctx context.Context, opts Options) ([]domain.Series, error) {
	return nil, errors.Unsupported("latest")
}

func (f *fakeAdapter) Details(ctx context.Context, nativeID string) (*domain.Series, error) {
	return nil, errors.Unsupported("details")
}

func (f *fakeAdapter) Chapters(ctx context.Context, nativeID string) ([]domain.Chapter, error) {
	return nil, errors.Unsupported("chapters")
}

func (f *fakeAdapter) ChapterPages(ctx context.Context, nativeID, chapterID string) ([]domain.PageRef, error) {
	return nil, errors.Unsupported("pages")
}

func (f *fakeAdapter) CheckConnectivity(ctx context.Context) error { return f.probeErr }

func TestRegistry_GetUnknown(t *testing.T) {
	r := NewRegistry()

	_, err := r.Get("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestRegistry_AvailableFiltersAdult(t *testing.T) {
	r := NewRegistry(
		&fakeAdapter{info: Info{ID: "safe", Name: "Safe"}},
		&fakeAdapter{info: Info{ID: "spicy", Name: "Spicy", Adult: true}},
	)

	all := r.Available(true)
	require.Len(t, all, 2)
	assert.Equal(t, "safe", all[0].ID)
	assert.Equal(t, "spicy", all[1].ID)

	filtered := r.Available(false)
	require.Len(t, filtered, 1)
	assert.Equal(t, "safe", filtered[0].ID)
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	r := NewRegistry(&fakeAdapter{info: Info{ID: "a", Name: "First"}})
	r.Register(&fakeAdapter{info: Info{ID: "a", Name: "Second"}})

	a, err := r.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "Second", a.Info().Name)
	assert.Len(t, r.IDs(), 1)
}

func TestRegistry_CheckAll(t *testing.T) {
	r := NewRegistry(
		&fakeAdapter{info: Info{ID: "up", Name: "Up"}},
		&fakeAdapter{info: Info{ID: "down", Name: "Down"}, probeErr: errors.Fetch("connection refused")},
	)

	statuses := r.CheckAll(context.Background(), time.Second)
	require.Len(t, statuses, 2)

	assert.True(t, statuses[0].Online)
	assert.Empty(t, statuses[0].Error)

	assert.False(t, statuses[1].Online)
	assert.Contains(t, statuses[1].Error, "connection refused")
}

func TestCapability_Has(t *testing.T) {
	caps := CapSearch | CapPopular | CapDetails

	assert.True(t, caps.Has(CapSearch))
	assert.True(t, caps.Has(CapSearch|CapPopular))
	assert.False(t, caps.Has(CapLatest))
	assert.False(t, caps.Has(CapSearch|CapLatest))
}
