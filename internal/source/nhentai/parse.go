package nhentai

import (
	"encoding/json/v2"
	"fmt"
	"html"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/normalize"
)

// The mirror serves no JSON API, so listing and detail pages are mined
// with regular expressions. The markup is template-generated and stable;
// a full HTML parse buys nothing here.

var (
	galleryItemRe = regexp.MustCompile(`(?is)<div[^>]*class="gallery_item"[^>]*>(.*?)</a>\s*</div>`)
	galleryLinkRe = regexp.MustCompile(`(?i)<a[^>]*href="/g/(\d+)/"`)
	titleAttrRe   = regexp.MustCompile(`(?i)title="([^"]*)"`)
	coverImgRe    = regexp.MustCompile(`(?i)<img[^>]*data-src="([^"]*)"[^>]*>`)
	captionRe     = regexp.MustCompile(`(?is)<div[^>]*class="caption"[^>]*>(.*?)</div>`)

	detailTitleRe  = regexp.MustCompile(`(?i)<h1>([^<]*)</h1>`)
	detailPagesRe  = regexp.MustCompile(`(?i)pages">(\d+)</span>`)
	detailCoverRe  = regexp.MustCompile(`(?i)<img[^>]*class="[^"]*lazyload[^"]*"[^>]*data-src="([^"]*)"[^>]*>`)
	detailTagRe    = regexp.MustCompile(`(?is)<a[^>]*class='tag_btn[^']*'[^>]*href='/tag/[^']*/'[^>]*>.*?<span[^>]*class='tag_name'[^>]*>([^<]*)</span>`)
	detailArtistRe = regexp.MustCompile(`(?is)<a[^>]*href='/artist/[^']*'[^>]*>.*?<span[^>]*class='tag_name'[^>]*>([^<]*)</span>`)

	pageDataRe   = regexp.MustCompile(`(?i)var g_th = \$\.parseJSON\('(\{[^']+\})'\);`)
	imageHostRe  = regexp.MustCompile(`(?i)https://(i\d+\.nhentaimg\.com)/(\d+)/([^/]+)/`)
	pageThumbRe  = regexp.MustCompile(`(?i)<a[^>]*href="/g/\d+/(\d+)/"[^>]*><img[^>]*data-src="([^"]*)"[^>]*>`)
	thumbSuffixRe = regexp.MustCompile(`(\d+)t\.`)
)

// extCodes maps the single-letter extension codes in the embedded page
// metadata to file extensions.
var extCodes = map[string]string{
	"j": "jpg",
	"p": "png",
	"g": "gif",
	"w": "webp",
}

// parseGalleryList extracts gallery entries from a listing page.
func parseGalleryList(htmlSrc string) []domain.Series {
	var results []domain.Series
	for _, item := range galleryItemRe.FindAllStringSubmatch(htmlSrc, -1) {
		content := item[1]

		link := galleryLinkRe.FindStringSubmatch(content)
		if link == nil {
			continue
		}
		galleryID := link[1]

		title := ""
		if m := titleAttrRe.FindStringSubmatch(content); m != nil {
			title = m[1]
		} else if m := captionRe.FindStringSubmatch(content); m != nil {
			title = normalize.StripHTML(m[1])
		}
		title = normalize.Title(title)
		if title == "" {
			title = "Gallery " + galleryID
		}

		cover := ""
		if m := coverImgRe.FindStringSubmatch(content); m != nil {
			cover = m[1]
		}

		results = append(results, domain.Series{
			ID:       domain.SeriesID(SourceID, galleryID),
			SourceID: SourceID,
			Slug:     galleryID,
			Title:    title,
			CoverURL: cover,
			Adult:    true,
		})
	}
	return results
}

// parseGalleryDetail extracts one gallery's metadata from its page.
// pageCount is returned separately; a gallery is one synthetic chapter.
func parseGalleryDetail(htmlSrc, galleryID string) (s domain.Series, pageCount int) {
	s = domain.Series{
		ID:           domain.SeriesID(SourceID, galleryID),
		SourceID:     SourceID,
		Slug:         galleryID,
		Title:        "Gallery " + galleryID,
		Status:       domain.StatusCompleted,
		ChapterCount: 1,
		Adult:        true,
	}

	if m := detailTitleRe.FindStringSubmatch(htmlSrc); m != nil {
		if title := normalize.Title(m[1]); title != "" {
			s.Title = title
		}
	}
	if m := detailPagesRe.FindStringSubmatch(htmlSrc); m != nil {
		pageCount, _ = strconv.Atoi(m[1])
	}
	if m := detailCoverRe.FindStringSubmatch(htmlSrc); m != nil {
		s.CoverURL = m[1]
	}
	for _, m := range detailTagRe.FindAllStringSubmatch(htmlSrc, -1) {
		if tag := strings.TrimSpace(html.UnescapeString(m[1])); tag != "" {
			s.Tags = append(s.Tags, tag)
		}
	}
	if m := detailArtistRe.FindStringSubmatch(htmlSrc); m != nil {
		s.Artist = strings.TrimSpace(html.UnescapeString(m[1]))
	}
	return s, pageCount
}

// parsePages resolves page image URLs from a gallery page. The primary
// path reads the embedded g_th JSON blob (page number to "ext,w,h");
// when that is missing the thumbnail grid is mined and the thumb suffix
// stripped from each URL.
func parsePages(htmlSrc string) []domain.PageRef {
	var pages []domain.PageRef

	if m := pageDataRe.FindStringSubmatch(htmlSrc); m != nil {
		var blob struct {
			FL map[string]string `json:"fl"`
		}
		if err := json.Unmarshal([]byte(m[1]), &blob); err == nil && len(blob.FL) > 0 {
			host, prefix, hash := "i5.nhentaimg.com", "000", ""
			if hm := imageHostRe.FindStringSubmatch(htmlSrc); hm != nil {
				host, prefix, hash = hm[1], hm[2], hm[3]
			}

			for pageNum, info := range blob.FL {
				num, err := strconv.Atoi(pageNum)
				if err != nil {
					continue
				}
				extCode, _, _ := strings.Cut(info, ",")
				ext, ok := extCodes[extCode]
				if !ok {
					ext = "jpg"
				}
				pages = append(pages, domain.PageRef{
					Index:     num,
					RemoteURL: fmt.Sprintf("https://%s/%s/%s/%s.%s", host, prefix, hash, pageNum, ext),
				})
			}
		}
	}

	if len(pages) == 0 {
		for _, m := range pageThumbRe.FindAllStringSubmatch(htmlSrc, -1) {
			num, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			pages = append(pages, domain.PageRef{
				Index:     num,
				RemoteURL: thumbSuffixRe.ReplaceAllString(m[2], "$1."),
			})
		}
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages
}
