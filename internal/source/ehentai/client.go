// Package ehentai implements an adult gallery adapter combining two
// upstream surfaces: listing and reader pages are scraped HTML, gallery
// metadata comes from the gdata JSON API. The site paginates listings by
// gallery ID cursor (?next=<gid>) rather than page numbers, so numbered
// pages are reached by walking the cursor chain.
package ehentai

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/fetch"
	"github.com/yomihub/yomihub-server/internal/source"
)

const (
	SourceID = "ehentai"

	siteBase = "https://e-hentai.org"
	apiURL   = "https://api.e-hentai.org/api.php"

	// Thumbnails shown per gallery page, used to compute how many pages
	// to walk for long galleries.
	thumbsPerGalleryPage = 40
	maxGalleryPages      = 10

	resolveConcurrency = 10
)

type gdataRequest struct {
	Method    string  `json:"method"`
	GIDList   [][]any `json:"gidlist"`
	Namespace int     `json:"namespace"`
}

type gdataResponse struct {
	GMetadata []gdataGallery `json:"gmetadata"`
}

// The API returns numbers as strings (filecount, rating, posted).
type gdataGallery struct {
	Title     string   `json:"title"`
	TitleJpn  string   `json:"title_jpn"`
	Category  string   `json:"category"`
	Thumb     string   `json:"thumb"`
	FileCount string   `json:"filecount"`
	Rating    string   `json:"rating"`
	Posted    string   `json:"posted"`
	Tags      []string `json:"tags"`
	Error     string   `json:"error"`
}

// Client implements source.Adapter for e-hentai.org.
type Client struct {
	fetcher *fetch.Client
	logger  *slog.Logger
	baseURL string
	apiURL  string
}

func New(fetcher *fetch.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		fetcher: fetcher,
		logger:  logger.With("source", SourceID),
		baseURL: siteBase,
		apiURL:  apiURL,
	}
}

func (c *Client) Info() source.Info {
	return source.Info{
		ID:          SourceID,
		Name:        "E-Hentai",
		BaseURL:     c.baseURL,
		Language:    "multi",
		Adult:       true,
		MinInterval: time.Second,
		Caps: source.CapSearch | source.CapPopular | source.CapLatest |
			source.CapDetails | source.CapChapters | source.CapPages,
		ImageHeaders: map[string]string{"Referer": siteBase + "/"},
	}
}

// splitNativeID returns the (gid, token) pair encoded in a native ID.
func splitNativeID(nativeID string) (string, string, error) {
	gid, token, ok := strings.Cut(nativeID, "_")
	if !ok || gid == "" || token == "" {
		return "", "", errors.Validationf("malformed gallery id %q", nativeID)
	}
	return gid, token, nil
}

// buildSearch assembles the site's search syntax: quoted exact tags with
// a $ terminator, minus-prefixed exclusions, language filter.
func buildSearch(query string, opts source.Options) string {
	parts := []string{strings.TrimSpace(query)}
	if opts.Language != "" && opts.Language != "all" {
		parts = append(parts, "language:"+opts.Language)
	}
	for _, tag := range opts.IncludeTags {
		parts = append(parts, fmt.Sprintf("%q", tag+"$"))
	}
	for _, tag := range opts.ExcludeTags {
		parts = append(parts, "-"+fmt.Sprintf("%q", tag+"$"))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (c *Client) Search(ctx context.Context, query string, opts source.Options) ([]domain.Series, error) {
	q := buildSearch(query, opts)
	return c.listing(ctx, func(next string) string {
		u := c.baseURL + "/?f_search=" + url.QueryEscape(q)
		if next != "" {
			u += "&next=" + next
		}
		return u
	}, opts.PageOrDefault())
}

func (c *Client) Popular(ctx context.Context, opts source.Options) ([]domain.Series, error) {
	if q := buildSearch("", opts); q != "" {
		return c.Search(ctx, "", opts)
	}
	return c.listing(ctx, c.frontPage, opts.PageOrDefault())
}

func (c *Client) Latest(ctx context.Context, opts source.Options) ([]domain.Series, error) {
	if q := buildSearch("", opts); q != "" {
		return c.Search(ctx, "", opts)
	}
	return c.listing(ctx, c.frontPage, opts.PageOrDefault())
}

func (c *Client) frontPage(next string) string {
	if next == "" {
		return c.baseURL + "/"
	}
	return c.baseURL + "/?next=" + next
}

// listing walks the ?next cursor chain until the requested page.
func (c *Client) listing(ctx context.Context, pageURL func(next string) string, page int) ([]domain.Series, error) {
	next := ""
	var entries []listEntry

	for p := 1; p <= page; p++ {
		html, err := c.fetcher.HTML(ctx, SourceID, pageURL(next), nil)
		if err != nil {
			return nil, err
		}

		entries = parseGalleryList(html)
		if len(entries) == 0 {
			return nil, nil
		}
		next = entries[len(entries)-1].GID
	}

	series := make([]domain.Series, 0, len(entries))
	for _, e := range entries {
		series = append(series, e.toSeries())
	}
	return series, nil
}

func (c *Client) Details(ctx context.Context, nativeID string) (*domain.Series, error) {
	gid, token, err := splitNativeID(nativeID)
	if err != nil {
		return nil, err
	}

	gallery, err := c.gdata(ctx, gid, token)
	if err != nil {
		// The metadata API throttles aggressively; fall back to scraping
		// the gallery page for a minimal record.
		c.logger.Warn("gdata unavailable, scraping gallery page", "gallery", nativeID, "error", err)
		return c.detailsFromHTML(ctx, nativeID, gid, token)
	}

	s := convertGallery(nativeID, gallery)
	return &s, nil
}

func (c *Client) detailsFromHTML(ctx context.Context, nativeID, gid, token string) (*domain.Series, error) {
	html, err := c.galleryPage(ctx, gid, token, 0)
	if err != nil {
		return nil, err
	}

	title := parseGalleryTitle(html)
	if title == "" {
		return nil, errors.Parsef("no gallery title at %s/%s", gid, token)
	}

	return &domain.Series{
		ID:       domain.SeriesID(SourceID, nativeID),
		SourceID: SourceID,
		Slug:     nativeID,
		Title:    title,
		Status:   domain.StatusCompleted,
		Adult:    true,
	}, nil
}

func (c *Client) gdata(ctx context.Context, gid, token string) (*gdataGallery, error) {
	gidNum, err := strconv.Atoi(gid)
	if err != nil {
		return nil, errors.Validationf("gallery id %q not numeric", gid)
	}

	body, err := json.Marshal(gdataRequest{
		Method:    "gdata",
		GIDList:   [][]any{{gidNum, token}},
		Namespace: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "encode gdata request")
	}

	var resp gdataResponse
	err = c.fetcher.JSON(ctx, SourceID, c.apiURL, &resp, &fetch.Options{
		Method:  "POST",
		Body:    body,
		Headers: map[string]string{"Content-Type": "application/json"},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.GMetadata) == 0 {
		return nil, errors.NotFoundf("gallery %s/%s not found", gid, token)
	}
	if resp.GMetadata[0].Error != "" {
		return nil, errors.NotFoundf("gallery %s/%s: %s", gid, token, resp.GMetadata[0].Error)
	}
	return &resp.GMetadata[0], nil
}

func convertGallery(nativeID string, g *gdataGallery) domain.Series {
	s := domain.Series{
		ID:           domain.SeriesID(SourceID, nativeID),
		SourceID:     SourceID,
		Slug:         nativeID,
		Title:        g.Title,
		CoverURL:     g.Thumb,
		Status:       domain.StatusCompleted,
		ChapterCount: 1,
		Adult:        true,
	}
	if s.Title == "" {
		s.Title = g.TitleJpn
	}
	if g.TitleJpn != "" && g.TitleJpn != s.Title {
		s.AltTitles = []string{g.TitleJpn}
	}
	if g.Category != "" {
		s.Genres = []string{strings.ToLower(g.Category)}
	}
	if rating, err := strconv.ParseFloat(g.Rating, 64); err == nil {
		s.Rating = rating
	}
	if posted, err := strconv.ParseInt(g.Posted, 10, 64); err == nil {
		s.UpdatedAt = time.Unix(posted, 0).UTC()
	}

	// Tags carry a namespace prefix; artist and group namespaces map to
	// dedicated fields, the rest stay as tags.
	for _, tag := range g.Tags {
		ns, name, ok := strings.Cut(tag, ":")
		if !ok {
			ns, name = "misc", tag
		}
		switch ns {
		case "artist":
			if s.Artist == "" {
				s.Artist = name
			}
		case "group":
			if s.Author == "" {
				s.Author = name
			}
		default:
			s.Tags = append(s.Tags, name)
		}
	}
	return s
}

func (c *Client) Chapters(ctx context.Context, nativeID string) ([]domain.Chapter, error) {
	gid, token, err := splitNativeID(nativeID)
	if err != nil {
		return nil, err
	}

	pageCount := 0
	if gallery, err := c.gdata(ctx, gid, token); err == nil {
		pageCount, _ = strconv.Atoi(gallery.FileCount)
	}

	return []domain.Chapter{{
		ID:        nativeID,
		SeriesID:  domain.SeriesID(SourceID, nativeID),
		Number:    1,
		Title:     "Full Gallery",
		Language:  "en",
		PageCount: pageCount,
	}}, nil
}

func (c *Client) galleryPage(ctx context.Context, gid, token string, page int) (string, error) {
	u := fmt.Sprintf("%s/g/%s/%s/", c.baseURL, gid, token)
	if page > 0 {
		u += fmt.Sprintf("?p=%d", page)
	}

	html, err := c.fetcher.HTML(ctx, SourceID, u, nil)
	if err != nil {
		if fetch.StatusOf(err) == 404 {
			return "", errors.NotFoundf("gallery %s/%s not found", gid, token)
		}
		return "", err
	}
	return html, nil
}

// ChapterPages walks the gallery's thumbnail pages collecting reader
// links, then resolves each to its full-size image concurrently.
func (c *Client) ChapterPages(ctx context.Context, nativeID, chapterID string) ([]domain.PageRef, error) {
	gid, token, err := splitNativeID(nativeID)
	if err != nil {
		return nil, err
	}

	html, err := c.galleryPage(ctx, gid, token, 0)
	if err != nil {
		return nil, err
	}
	links := parsePageLinks(html)
	if len(links) == 0 {
		return nil, errors.Parsef("no page links in gallery %s", nativeID)
	}

	total := len(links)
	if gallery, err := c.gdata(ctx, gid, token); err == nil {
		if n, err := strconv.Atoi(gallery.FileCount); err == nil && n > 0 {
			total = n
		}
	}

	for p := 1; len(links) < total && p < maxGalleryPages; p++ {
		pageHTML, err := c.galleryPage(ctx, gid, token, p)
		if err != nil {
			break
		}
		more := parsePageLinks(pageHTML)
		if len(more) == 0 {
			break
		}
		links = append(links, more...)
	}

	pages := make([]domain.PageRef, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveConcurrency)
	for i, link := range links {
		g.Go(func() error {
			readerHTML, err := c.fetcher.HTML(gctx, SourceID, link, nil)
			if err != nil {
				return err
			}
			full := parseFullImage(readerHTML)
			if full == "" {
				return errors.Parsef("no image on reader page %s", link)
			}
			pages[i] = domain.PageRef{Index: i + 1, RemoteURL: full}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (c *Client) CheckConnectivity(ctx context.Context) error {
	_, err := c.fetcher.HTML(ctx, SourceID, c.baseURL+"/", nil)
	return err
}
