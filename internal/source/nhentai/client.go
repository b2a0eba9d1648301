// Package nhentai implements an adult gallery adapter scraping the
// nhentai.xxx mirror. The primary site sits behind Cloudflare; the
// mirror serves plain HTML.
package nhentai

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/fetch"
	"github.com/yomihub/yomihub-server/internal/source"
)

const (
	SourceID = "nhentai"

	mirrorBase = "https://nhentai.xxx"
)

// Client implements source.Adapter by scraping gallery listing and
// detail pages. Each gallery maps to a series with one synthetic
// chapter holding all pages.
type Client struct {
	fetcher *fetch.Client
	logger  *slog.Logger
	baseURL string
}

func New(fetcher *fetch.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		fetcher: fetcher,
		logger:  logger.With("source", SourceID),
		baseURL: mirrorBase,
	}
}

func (c *Client) Info() source.Info {
	return source.Info{
		ID:          SourceID,
		Name:        "NHentai",
		BaseURL:     c.baseURL,
		Language:    "multi",
		Adult:       true,
		MinInterval: time.Second,
		Caps: source.CapSearch | source.CapPopular | source.CapLatest |
			source.CapDetails | source.CapChapters | source.CapPages,
		ImageHeaders: map[string]string{"Referer": mirrorBase + "/"},
	}
}

// buildQuery assembles the mirror's search syntax: free text plus
// "language:x" filters and "-tag" exclusions.
func buildQuery(query string, opts source.Options) string {
	parts := []string{strings.TrimSpace(query)}
	if opts.Language != "" && opts.Language != "all" {
		parts = append(parts, "language:"+opts.Language)
	}
	parts = append(parts, opts.IncludeTags...)
	for _, tag := range opts.ExcludeTags {
		parts = append(parts, "-"+tag)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (c *Client) Search(ctx context.Context, query string, opts source.Options) ([]domain.Series, error) {
	q := buildQuery(query, opts)
	if q == "" {
		return c.Popular(ctx, opts)
	}

	u := fmt.Sprintf("%s/search/?key=%s&page=%d", c.baseURL, url.QueryEscape(q), opts.PageOrDefault())
	return c.listing(ctx, u)
}

func (c *Client) Popular(ctx context.Context, opts source.Options) ([]domain.Series, error) {
	if q := buildQuery("", opts); q != "" {
		u := fmt.Sprintf("%s/search/?key=%s&sort=popular&page=%d", c.baseURL, url.QueryEscape(q), opts.PageOrDefault())
		return c.listing(ctx, u)
	}
	return c.listing(ctx, fmt.Sprintf("%s/?sort=popular&page=%d", c.baseURL, opts.PageOrDefault()))
}

func (c *Client) Latest(ctx context.Context, opts source.Options) ([]domain.Series, error) {
	if q := buildQuery("", opts); q != "" {
		u := fmt.Sprintf("%s/search/?key=%s&page=%d", c.baseURL, url.QueryEscape(q), opts.PageOrDefault())
		return c.listing(ctx, u)
	}
	if page := opts.PageOrDefault(); page > 1 {
		return c.listing(ctx, fmt.Sprintf("%s/?page=%d", c.baseURL, page))
	}
	return c.listing(ctx, c.baseURL)
}

func (c *Client) listing(ctx context.Context, u string) ([]domain.Series, error) {
	html, err := c.fetcher.HTML(ctx, SourceID, u, nil)
	if err != nil {
		return nil, err
	}
	return parseGalleryList(html), nil
}

func (c *Client) Details(ctx context.Context, nativeID string) (*domain.Series, error) {
	html, err := c.galleryPage(ctx, nativeID)
	if err != nil {
		return nil, err
	}
	s, _ := parseGalleryDetail(html, nativeID)
	return &s, nil
}

// Chapters returns the single synthetic chapter every gallery has. The
// gallery page is fetched only to fill in the page count.
func (c *Client) Chapters(ctx context.Context, nativeID string) ([]domain.Chapter, error) {
	html, err := c.galleryPage(ctx, nativeID)
	if err != nil {
		return nil, err
	}
	_, pageCount := parseGalleryDetail(html, nativeID)

	return []domain.Chapter{{
		ID:        nativeID,
		SeriesID:  domain.SeriesID(SourceID, nativeID),
		Number:    1,
		Title:     "Full Gallery",
		Language:  "en",
		PageCount: pageCount,
	}}, nil
}

func (c *Client) ChapterPages(ctx context.Context, nativeID, chapterID string) ([]domain.PageRef, error) {
	html, err := c.galleryPage(ctx, nativeID)
	if err != nil {
		return nil, err
	}

	pages := parsePages(html)
	if len(pages) == 0 {
		return nil, errors.Parsef("no pages found in gallery %s", nativeID)
	}
	return pages, nil
}

func (c *Client) galleryPage(ctx context.Context, galleryID string) (string, error) {
	u := fmt.Sprintf("%s/g/%s/", c.baseURL, url.PathEscape(galleryID))
	html, err := c.fetcher.HTML(ctx, SourceID, u, nil)
	if err != nil {
		if fetch.StatusOf(err) == 404 {
			return "", errors.NotFoundf("gallery %s not found", galleryID)
		}
		return "", err
	}
	return html, nil
}

func (c *Client) CheckConnectivity(ctx context.Context) error {
	_, err := c.fetcher.HTML(ctx, SourceID, c.baseURL+"/", nil)
	return err
}
