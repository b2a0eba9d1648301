// Package source defines the contract every content source adapter
// implements, plus the registry the aggregation layer fans out over.
// Adapters own their upstream protocol (JSON API, HTML scrape, binary
// index); everything above this package only sees domain types.
package source

import (
	"context"
	"time"

	"github.com/yomihub/yomihub-server/internal/domain"
)

// Capability describes which operations an adapter supports. Adapters
// without a capability return an unsupported error for that operation;
// the orchestrator skips them instead of reporting a failure.
type Capability uint8

const (
	CapSearch Capability = 1 << iota
	CapPopular
	CapLatest
	CapDetails
	CapChapters
	CapPages
)

// Has reports whether all bits in want are set.
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

// Names lists the set capabilities as operation names.
func (c Capability) Names() []string {
	all := []struct {
		bit  Capability
		name string
	}{
		{CapSearch, "search"},
		{CapPopular, "popular"},
		{CapLatest, "latest"},
		{CapDetails, "details"},
		{CapChapters, "chapters"},
		{CapPages, "pages"},
	}
	names := make([]string, 0, len(all))
	for _, entry := range all {
		if c.Has(entry.bit) {
			names = append(names, entry.name)
		}
	}
	return names
}

// Info is an adapter's static self-description.
type Info struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	BaseURL     string        `json:"baseUrl"`
	Language    string        `json:"language"`
	Adult       bool          `json:"adult"`
	MinInterval time.Duration `json:"-"`
	Caps        Capability    `json:"-"`

	// ImageHeaders are sent with page image downloads. Most mirrors
	// reject requests without the right Referer.
	ImageHeaders map[string]string `json:"-"`
}

// Sort orders listing results.
type Sort string

const (
	SortRelevance Sort = "relevance"
	SortPopular   Sort = "popular"
	SortLatest    Sort = "latest"
	SortRating    Sort = "rating"
)

// Options tune listing operations. The zero value means first page with
// the adapter's default page size.
type Options struct {
	Page     int
	Limit    int
	Language string
	Category string
	Sort     Sort

	// IncludeAdult widens results to adult content on sources that mix
	// ratings. Sources that are adult-only ignore it.
	IncludeAdult bool

	// IncludeTags and ExcludeTags filter by tag name where the upstream
	// supports it.
	IncludeTags []string
	ExcludeTags []string
}

// PageOrDefault returns the 1-based page number.
func (o Options) PageOrDefault() int {
	if o.Page < 1 {
		return 1
	}
	return o.Page
}

// LimitOrDefault clamps the page size into (0, max].
func (o Options) LimitOrDefault(def, max int) int {
	if o.Limit <= 0 {
		return def
	}
	if o.Limit > max {
		return max
	}
	return o.Limit
}

// Adapter is one upstream content source. Implementations must be safe
// for concurrent use; the orchestrator calls several adapters at once.
type Adapter interface {
	Info() Info

	// Search returns series matching a free-text query.
	Search(ctx context.Context, query string, opts Options) ([]domain.Series, error)

	// Popular lists series by popularity.
	Popular(ctx context.Context, opts Options) ([]domain.Series, error)

	// Latest lists recently updated series.
	Latest(ctx context.Context, opts Options) ([]domain.Series, error)

	// Details fetches one series by its source-native identifier.
	Details(ctx context.Context, nativeID string) (*domain.Series, error)

	// Chapters lists a series' chapters, newest first.
	Chapters(ctx context.Context, nativeID string) ([]domain.Chapter, error)

	// ChapterPages resolves the remote image URLs of one chapter.
	ChapterPages(ctx context.Context, nativeID, chapterID string) ([]domain.PageRef, error)

	// CheckConnectivity probes the upstream with a minimal request.
	CheckConnectivity(ctx context.Context) error
}

// TagLister is implemented by adapters whose upstream exposes a canonical
// tag vocabulary. The tag sync job type-asserts for it.
type TagLister interface {
	Tags(ctx context.Context) ([]domain.Tag, error)
}
