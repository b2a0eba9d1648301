package ehentai

import (
	"regexp"
	"strings"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/normalize"
)

// Listing pages come in table and thumbnail layouts; both carry gallery
// links of the form /g/{gid}/{token}/. Rows are mined with regular
// expressions keyed on those links.

var (
	rowRe      = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>|<div class="gl1t"[^>]*>(.*?)</div>\s*</div>`)
	linkRe     = regexp.MustCompile(`(?i)href="[^"]*/g/(\d+)/([a-f0-9]+)`)
	glinkRe    = regexp.MustCompile(`(?is)<div class="glink"[^>]*>(.*?)</div>|<a[^>]*class="gl4t[^"]*"[^>]*>(.*?)</a>`)
	imgRe      = regexp.MustCompile(`(?i)<img[^>]*\s(?:data-src|src)="([^"]+)"`)
	categoryRe = regexp.MustCompile(`(?is)<div class="c[nst]"[^>]*>(.*?)</div>`)

	pageLinkRe  = regexp.MustCompile(`(?i)href="([^"]*/s/[a-f0-9]+/\d+-\d+)"`)
	fullImageRe = regexp.MustCompile(`(?is)<img\s+id="img"[^>]*\ssrc="([^"]+)"`)
	detailTitleRe = regexp.MustCompile(`(?is)<h1 id="gn"[^>]*>(.*?)</h1>`)
)

type listEntry struct {
	GID      string
	Token    string
	Title    string
	CoverURL string
	Category string
}

// parseGalleryList extracts gallery entries from a listing page,
// deduplicated by (gid, token).
func parseGalleryList(htmlSrc string) []listEntry {
	var entries []listEntry
	seen := make(map[string]bool)

	for _, row := range rowRe.FindAllStringSubmatch(htmlSrc, -1) {
		content := row[1]
		if content == "" {
			content = row[2]
		}

		link := linkRe.FindStringSubmatch(content)
		if link == nil {
			continue
		}
		gid, token := link[1], link[2]
		if seen[gid+"_"+token] {
			continue
		}

		title := ""
		if m := glinkRe.FindStringSubmatch(content); m != nil {
			title = m[1]
			if title == "" {
				title = m[2]
			}
			title = normalize.Title(normalize.StripHTML(title))
		}
		if title == "" {
			continue
		}
		seen[gid+"_"+token] = true

		cover := ""
		if m := imgRe.FindStringSubmatch(content); m != nil {
			cover = m[1]
			if strings.HasPrefix(cover, "//") {
				cover = "https:" + cover
			}
		}

		category := ""
		if m := categoryRe.FindStringSubmatch(content); m != nil {
			category = strings.ToLower(strings.TrimSpace(normalize.StripHTML(m[1])))
		}

		entries = append(entries, listEntry{
			GID:      gid,
			Token:    token,
			Title:    title,
			CoverURL: cover,
			Category: category,
		})
	}
	return entries
}

func (e listEntry) toSeries() domain.Series {
	nativeID := e.GID + "_" + e.Token
	s := domain.Series{
		ID:       domain.SeriesID(SourceID, nativeID),
		SourceID: SourceID,
		Slug:     nativeID,
		Title:    e.Title,
		CoverURL: e.CoverURL,
		Status:   domain.StatusCompleted,
		Adult:    true,
	}
	if e.Category != "" {
		s.Genres = []string{e.Category}
	}
	return s
}

// parsePageLinks extracts the per-page reader links from a gallery page,
// in document order.
func parsePageLinks(htmlSrc string) []string {
	var links []string
	seen := make(map[string]bool)
	for _, m := range pageLinkRe.FindAllStringSubmatch(htmlSrc, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			links = append(links, m[1])
		}
	}
	return links
}

// parseFullImage extracts the full-size image URL from a reader page.
func parseFullImage(htmlSrc string) string {
	if m := fullImageRe.FindStringSubmatch(htmlSrc); m != nil {
		return m[1]
	}
	return ""
}

// parseGalleryTitle extracts the title from a gallery page, used when
// the metadata API is unavailable.
func parseGalleryTitle(htmlSrc string) string {
	if m := detailTitleRe.FindStringSubmatch(htmlSrc); m != nil {
		return normalize.Title(normalize.StripHTML(m[1]))
	}
	return ""
}
