// Package mangadex implements the MangaDex source adapter on the official
// JSON API. It is the most reliable source and the only one with a
// canonical tag vocabulary, which the tag sync job imports.
package mangadex

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/fetch"
	"github.com/yomihub/yomihub-server/internal/source"
)

const (
	SourceID = "mangadex"

	apiBase    = "https://api.mangadex.org"
	uploadBase = "https://uploads.mangadex.org"

	defaultPageSize = 24
	maxPageSize     = 100

	// The chapter feed paginates at 500 per request; the loop stops at
	// 10000 chapters to bound pathological series.
	feedPageSize   = 500
	feedMaxResults = 10000

	tagCacheTTL = time.Hour
)

// Client implements source.Adapter against api.mangadex.org.
type Client struct {
	fetcher *fetch.Client
	logger  *slog.Logger
	baseURL string

	// Tag name to tag ID resolution, refetched hourly.
	tagMu        sync.Mutex
	tagCache     []tagData
	tagFetchedAt time.Time
}

func New(fetcher *fetch.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		fetcher: fetcher,
		logger:  logger.With("source", SourceID),
		baseURL: apiBase,
	}
}

func (c *Client) Info() source.Info {
	return source.Info{
		ID:          SourceID,
		Name:        "MangaDex",
		BaseURL:     c.baseURL,
		Language:    "multi",
		Adult:       false,
		MinInterval: 250 * time.Millisecond,
		Caps: source.CapSearch | source.CapPopular | source.CapLatest |
			source.CapDetails | source.CapChapters | source.CapPages,
	}
}

func (c *Client) Search(ctx context.Context, query string, opts source.Options) ([]domain.Series, error) {
	return c.list(ctx, query, "order[followedCount]", opts)
}

func (c *Client) Popular(ctx context.Context, opts source.Options) ([]domain.Series, error) {
	return c.list(ctx, "", "order[followedCount]", opts)
}

func (c *Client) Latest(ctx context.Context, opts source.Options) ([]domain.Series, error) {
	opts.IncludeAdult = true
	return c.list(ctx, "", "order[latestUploadedChapter]", opts)
}

func (c *Client) list(ctx context.Context, query, orderParam string, opts source.Options) ([]domain.Series, error) {
	limit := opts.LimitOrDefault(defaultPageSize, maxPageSize)
	offset := (opts.PageOrDefault() - 1) * limit

	params := url.Values{}
	params.Set("limit", fmt.Sprint(limit))
	params.Set("offset", fmt.Sprint(offset))
	params.Add("includes[]", "cover_art")
	params.Set(orderParam, "desc")
	params.Set("hasAvailableChapters", "true")
	addContentRatings(params, opts.IncludeAdult)
	if query != "" {
		params.Set("title", query)
	}

	if len(opts.IncludeTags) > 0 {
		for _, id := range c.resolveTagIDs(ctx, opts.IncludeTags) {
			params.Add("includedTags[]", id)
		}
	}
	if len(opts.ExcludeTags) > 0 {
		for _, id := range c.resolveTagIDs(ctx, opts.ExcludeTags) {
			params.Add("excludedTags[]", id)
		}
	}

	var resp mangaListResponse
	if err := c.fetcher.JSON(ctx, SourceID, c.baseURL+"/manga?"+params.Encode(), &resp, nil); err != nil {
		return nil, err
	}

	series := make([]domain.Series, 0, len(resp.Data))
	for _, m := range resp.Data {
		series = append(series, convertSeries(m, false))
	}
	return series, nil
}

func (c *Client) Details(ctx context.Context, nativeID string) (*domain.Series, error) {
	params := url.Values{}
	params.Add("includes[]", "cover_art")
	params.Add("includes[]", "author")
	params.Add("includes[]", "artist")

	var resp mangaResponse
	err := c.fetcher.JSON(ctx, SourceID, c.baseURL+"/manga/"+url.PathEscape(nativeID)+"?"+params.Encode(), &resp, nil)
	if err != nil {
		if fetch.StatusOf(err) == 404 {
			return nil, errors.NotFoundf("series %s not found", nativeID)
		}
		return nil, err
	}
	if resp.Data == nil {
		return nil, errors.NotFoundf("series %s not found", nativeID)
	}

	s := convertSeries(*resp.Data, true)
	return &s, nil
}

// Chapters walks the full chapter feed and deduplicates by
// (volume, number, language), keeping the upload with the most pages.
func (c *Client) Chapters(ctx context.Context, nativeID string) ([]domain.Chapter, error) {
	seriesID := domain.SeriesID(SourceID, nativeID)

	type dedupeKey struct {
		volume, number, language string
	}
	best := make(map[dedupeKey]chapterData)
	var order []dedupeKey

	for offset := 0; offset < feedMaxResults; offset += feedPageSize {
		params := url.Values{}
		params.Set("limit", fmt.Sprint(feedPageSize))
		params.Set("offset", fmt.Sprint(offset))
		params.Set("order[chapter]", "desc")
		params.Set("order[volume]", "desc")
		params.Add("includes[]", "scanlation_group")
		addContentRatings(params, true)

		var resp chapterFeedResponse
		feedURL := fmt.Sprintf("%s/manga/%s/feed?%s", c.baseURL, nativeID, params.Encode())
		if err := c.fetcher.JSON(ctx, SourceID, feedURL, &resp, nil); err != nil {
			return nil, err
		}

		for _, ch := range resp.Data {
			key := dedupeKey{ch.Attributes.Volume, ch.Attributes.Chapter, ch.Attributes.TranslatedLanguage}
			existing, seen := best[key]
			if !seen {
				order = append(order, key)
			}
			if !seen || ch.Attributes.Pages > existing.Attributes.Pages {
				best[key] = ch
			}
		}

		if offset+feedPageSize >= resp.Total || len(resp.Data) < feedPageSize {
			break
		}
	}

	chapters := make([]domain.Chapter, 0, len(order))
	for _, key := range order {
		chapters = append(chapters, convertChapter(best[key], seriesID))
	}
	sortChaptersDesc(chapters)
	return chapters, nil
}

func (c *Client) ChapterPages(ctx context.Context, nativeID, chapterID string) ([]domain.PageRef, error) {
	// External chapters host their pages elsewhere; surface the external
	// URL as a single page rather than failing.
	var chResp chapterResponse
	if err := c.fetcher.JSON(ctx, SourceID, c.baseURL+"/chapter/"+url.PathEscape(chapterID), &chResp, nil); err != nil {
		if fetch.StatusOf(err) == 404 {
			return nil, errors.NotFoundf("chapter %s not found", chapterID)
		}
		return nil, err
	}
	if chResp.Data != nil && chResp.Data.Attributes.ExternalURL != "" {
		return []domain.PageRef{{Index: 1, RemoteURL: chResp.Data.Attributes.ExternalURL}}, nil
	}

	var resp atHomeResponse
	if err := c.fetcher.JSON(ctx, SourceID, c.baseURL+"/at-home/server/"+url.PathEscape(chapterID), &resp, nil); err != nil {
		return nil, err
	}
	if resp.BaseURL == "" || len(resp.Chapter.Data) == 0 {
		return nil, errors.Parsef("no page data for chapter %s", chapterID)
	}

	pages := make([]domain.PageRef, 0, len(resp.Chapter.Data))
	for i, file := range resp.Chapter.Data {
		pages = append(pages, domain.PageRef{
			Index:     i + 1,
			RemoteURL: fmt.Sprintf("%s/data/%s/%s", resp.BaseURL, resp.Chapter.Hash, file),
		})
	}
	return pages, nil
}

func (c *Client) CheckConnectivity(ctx context.Context) error {
	_, err := c.fetcher.HTML(ctx, SourceID, c.baseURL+"/ping", nil)
	return err
}

// Tags fetches the canonical tag vocabulary.
func (c *Client) Tags(ctx context.Context) ([]domain.Tag, error) {
	raw, err := c.tags(ctx)
	if err != nil {
		return nil, err
	}

	tags := make([]domain.Tag, 0, len(raw))
	for _, t := range raw {
		name := t.Attributes.Name["en"]
		if name == "" {
			continue
		}
		tags = append(tags, domain.Tag{
			Name:      name,
			Group:     domain.ParseTagGroup(t.Attributes.Group),
			SourceRef: SourceID + ":" + t.ID,
		})
	}
	return tags, nil
}

func (c *Client) tags(ctx context.Context) ([]tagData, error) {
	c.tagMu.Lock()
	defer c.tagMu.Unlock()

	if c.tagCache != nil && time.Since(c.tagFetchedAt) < tagCacheTTL {
		return c.tagCache, nil
	}

	var resp tagListResponse
	if err := c.fetcher.JSON(ctx, SourceID, c.baseURL+"/manga/tag", &resp, nil); err != nil {
		return nil, err
	}
	c.tagCache = resp.Data
	c.tagFetchedAt = time.Now()
	return resp.Data, nil
}

// resolveTagIDs maps tag names to MangaDex tag UUIDs. Unresolvable names
// are silently dropped; filtering is best effort.
func (c *Client) resolveTagIDs(ctx context.Context, names []string) []string {
	raw, err := c.tags(ctx)
	if err != nil {
		c.logger.Warn("tag resolution unavailable", "error", err)
		return nil
	}

	var ids []string
	for _, name := range names {
		for _, t := range raw {
			if strings.EqualFold(t.Attributes.Name["en"], name) {
				ids = append(ids, t.ID)
				break
			}
		}
	}
	return ids
}

func addContentRatings(params url.Values, includeAdult bool) {
	params.Add("contentRating[]", "safe")
	params.Add("contentRating[]", "suggestive")
	if includeAdult {
		params.Add("contentRating[]", "erotica")
		params.Add("contentRating[]", "pornographic")
	}
}
