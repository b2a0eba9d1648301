// Package hitomi implements an adult gallery adapter over the hitomi.la
// backend protocol: binary nozomi listing indexes sliced with HTTP Range
// requests, per-gallery JavaScript metadata blobs, and image hosts
// selected by parameters scraped from gg.js.
package hitomi

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/fetch"
	"github.com/yomihub/yomihub-server/internal/normalize"
	"github.com/yomihub/yomihub-server/internal/source"
)

const (
	SourceID = "hitomi"

	siteBase  = "https://hitomi.la"
	apiDomain = "gold-usergeneratedcontent.net"

	defaultPageSize = 25

	// gg.js rotates often; a stale cache produces dead image URLs.
	ggCacheTTL = time.Minute

	// Concurrent gallery metadata fetches per listing page.
	fetchConcurrency = 8
)

var galleryInfoRe = regexp.MustCompile(`var\s+galleryinfo\s*=\s*(\{[\s\S]*\})`)

// Client implements source.Adapter against the ltn metadata host.
type Client struct {
	fetcher *fetch.Client
	logger  *slog.Logger
	ltnBase string

	ggMu        sync.Mutex
	gg          *ggParams
	ggFetchedAt time.Time
}

func New(fetcher *fetch.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		fetcher: fetcher,
		logger:  logger.With("source", SourceID),
		ltnBase: "https://ltn." + apiDomain,
	}
}

func (c *Client) Info() source.Info {
	return source.Info{
		ID:          SourceID,
		Name:        "Hitomi",
		BaseURL:     siteBase,
		Language:    "multi",
		Adult:       true,
		MinInterval: 200 * time.Millisecond,
		Caps: source.CapSearch | source.CapPopular | source.CapLatest |
			source.CapDetails | source.CapChapters | source.CapPages,
		ImageHeaders: map[string]string{"Referer": siteBase + "/"},
	}
}

func languageOrAll(lang string) string {
	if lang == "" || lang == "all" {
		return "all"
	}
	return lang
}

func (c *Client) Search(ctx context.Context, query string, opts source.Options) ([]domain.Series, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.Latest(ctx, opts)
	}

	// Queries route through per-tag indexes; multi-word queries use the
	// underscored tag form.
	tag := strings.ReplaceAll(strings.ToLower(query), " ", "_")
	path := fmt.Sprintf("tag/%s-%s.nozomi", tag, languageOrAll(opts.Language))

	ids, err := c.fetchNozomi(ctx, path, opts)
	if err != nil || len(ids) == 0 {
		// Unknown tag; fall back to the global index so the source still
		// contributes something.
		ids, err = c.fetchNozomi(ctx, fmt.Sprintf("index-%s.nozomi", languageOrAll(opts.Language)), opts)
		if err != nil {
			return nil, err
		}
	}
	return c.fetchGalleries(ctx, ids)
}

func (c *Client) Popular(ctx context.Context, opts source.Options) ([]domain.Series, error) {
	path := fmt.Sprintf("popular/week-%s.nozomi", languageOrAll(opts.Language))
	ids, err := c.fetchNozomi(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return c.fetchGalleries(ctx, ids)
}

func (c *Client) Latest(ctx context.Context, opts source.Options) ([]domain.Series, error) {
	path := fmt.Sprintf("index-%s.nozomi", languageOrAll(opts.Language))
	ids, err := c.fetchNozomi(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	return c.fetchGalleries(ctx, ids)
}

func (c *Client) fetchNozomi(ctx context.Context, path string, opts source.Options) ([]int, error) {
	limit := opts.LimitOrDefault(defaultPageSize, 100)
	start := (opts.PageOrDefault() - 1) * limit
	from, to := nozomiRange(start, limit)

	data, err := c.fetcher.Range(ctx, SourceID, c.ltnBase+"/"+path, from, to, map[string]string{
		"Referer": siteBase + "/",
	})
	if err != nil {
		if fetch.StatusOf(err) == 404 || fetch.StatusOf(err) == 416 {
			return nil, nil
		}
		return nil, err
	}
	return decodeNozomi(data), nil
}

// fetchGalleries loads gallery metadata concurrently, preserving index
// order. Galleries that fail to load are dropped, not fatal.
func (c *Client) fetchGalleries(ctx context.Context, ids []int) ([]domain.Series, error) {
	results := make([]*domain.Series, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			gid := fmt.Sprint(id)
			info, err := c.galleryInfo(ctx, gid)
			if err != nil {
				c.logger.Warn("gallery fetch failed", "gallery", gid, "error", err)
				return nil
			}
			s := convertGallery(gid, info)
			results[i] = &s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	series := make([]domain.Series, 0, len(ids))
	for _, s := range results {
		if s != nil {
			series = append(series, *s)
		}
	}
	return series, nil
}

func (c *Client) galleryInfo(ctx context.Context, gid string) (*galleryInfo, error) {
	js, err := c.fetcher.HTML(ctx, SourceID, fmt.Sprintf("%s/galleries/%s.js", c.ltnBase, gid), &fetch.Options{
		Headers: map[string]string{"Referer": fmt.Sprintf("%s/reader/%s.html", siteBase, gid)},
	})
	if err != nil {
		if fetch.StatusOf(err) == 404 {
			return nil, errors.NotFoundf("gallery %s not found", gid)
		}
		return nil, err
	}

	m := galleryInfoRe.FindStringSubmatch(js)
	if m == nil {
		return nil, errors.Parsef("no galleryinfo in %s.js", gid)
	}

	var info galleryInfo
	if err := json.Unmarshal([]byte(m[1]), &info); err != nil {
		return nil, errors.Wrapf(err, errors.CodeParse, "decode galleryinfo %s", gid)
	}
	return &info, nil
}

func (c *Client) Details(ctx context.Context, nativeID string) (*domain.Series, error) {
	info, err := c.galleryInfo(ctx, nativeID)
	if err != nil {
		return nil, err
	}
	s := convertGallery(nativeID, info)
	return &s, nil
}

func (c *Client) Chapters(ctx context.Context, nativeID string) ([]domain.Chapter, error) {
	info, err := c.galleryInfo(ctx, nativeID)
	if err != nil {
		return nil, err
	}

	return []domain.Chapter{{
		ID:        nativeID,
		SeriesID:  domain.SeriesID(SourceID, nativeID),
		Number:    1,
		Title:     "Full Gallery",
		Language:  info.Language,
		PageCount: len(info.Files),
	}}, nil
}

func (c *Client) ChapterPages(ctx context.Context, nativeID, chapterID string) ([]domain.PageRef, error) {
	info, err := c.galleryInfo(ctx, nativeID)
	if err != nil {
		return nil, err
	}
	if len(info.Files) == 0 {
		return nil, errors.Parsef("gallery %s has no files", nativeID)
	}

	gg, err := c.ggParams(ctx)
	if err != nil {
		return nil, err
	}

	pages := make([]domain.PageRef, 0, len(info.Files))
	for i, file := range info.Files {
		u, err := imageURL(file, gg)
		if err != nil {
			return nil, err
		}
		pages = append(pages, domain.PageRef{Index: i + 1, RemoteURL: u})
	}
	return pages, nil
}

func (c *Client) ggParams(ctx context.Context) (ggParams, error) {
	c.ggMu.Lock()
	defer c.ggMu.Unlock()

	if c.gg != nil && time.Since(c.ggFetchedAt) < ggCacheTTL {
		return *c.gg, nil
	}

	js, err := c.fetcher.HTML(ctx, SourceID, c.ltnBase+"/gg.js", &fetch.Options{
		Headers: map[string]string{"Origin": siteBase, "Referer": siteBase + "/"},
	})
	if err != nil {
		if c.gg != nil {
			// Stale parameters beat no parameters.
			return *c.gg, nil
		}
		return ggParams{}, err
	}

	params := parseGG(js)
	c.gg = &params
	c.ggFetchedAt = time.Now()
	return params, nil
}

func (c *Client) CheckConnectivity(ctx context.Context) error {
	_, err := c.fetcher.HTML(ctx, SourceID, c.ltnBase+"/gg.js", nil)
	return err
}

func convertGallery(gid string, info *galleryInfo) domain.Series {
	s := domain.Series{
		ID:           domain.SeriesID(SourceID, gid),
		SourceID:     SourceID,
		Slug:         gid,
		Title:        normalize.Title(info.Title),
		Status:       domain.StatusCompleted,
		Language:     info.Language,
		ChapterCount: 1,
		Adult:        true,
	}
	if s.Title == "" {
		s.Title = normalize.Title(info.JapaneseTitle)
	}
	if s.Title == "" {
		s.Title = "Gallery " + gid
	}
	if s.Language == "" {
		s.Language = "japanese"
	}

	for _, t := range info.Tags {
		if t.Tag != "" {
			s.Tags = append(s.Tags, t.Tag)
		}
	}
	for _, p := range info.Parodies {
		if p.Parody != "" {
			s.Tags = append(s.Tags, p.Parody)
		}
	}
	for _, ch := range info.Characters {
		if ch.Character != "" {
			s.Tags = append(s.Tags, ch.Character)
		}
	}
	if info.Type != "" {
		s.Genres = []string{info.Type}
	}
	if len(info.Artists) > 0 {
		s.Artist = info.Artists[0].Artist
	}
	if len(info.Groups) > 0 {
		s.Author = info.Groups[0].Group
	}
	if len(info.Files) > 0 {
		s.CoverURL = thumbnailURL(gid, info.Files[0])
	}
	if t, err := time.Parse("2006-01-02 15:04:05-07", info.Date); err == nil {
		s.UpdatedAt = t
	}
	return s
}
