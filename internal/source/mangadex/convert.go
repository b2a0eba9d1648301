package mangadex

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/normalize"
)

// convertSeries maps an API manga record to the domain model. detail
// selects the full-resolution cover; listings use the 256px variant.
func convertSeries(m mangaData, detail bool) domain.Series {
	attrs := m.Attributes

	s := domain.Series{
		ID:       domain.SeriesID(SourceID, m.ID),
		SourceID: SourceID,
		Slug:     m.ID,
		Title:    normalize.Title(pickLocalized(attrs.Title, "en", "ja-ro", "ja")),
		Status:   normalize.Status(attrs.Status),
		Language: attrs.OriginalLanguage,
		Adult:    attrs.ContentRating == "erotica" || attrs.ContentRating == "pornographic",
	}
	if s.Title == "" {
		s.Title = "Unknown"
	}

	if desc := pickLocalized(attrs.Description, "en", "en-us"); desc != "" {
		s.Description = normalize.Description(desc)
	}

	for _, alt := range attrs.AltTitles {
		if v := pickLocalized(alt); v != "" {
			s.AltTitles = append(s.AltTitles, v)
		}
	}

	for _, t := range attrs.Tags {
		name := t.Attributes.Name["en"]
		if name == "" {
			continue
		}
		s.Tags = append(s.Tags, name)
		if t.Attributes.Group == "genre" {
			s.Genres = append(s.Genres, name)
		}
	}

	for _, rel := range m.Relationships {
		switch rel.Type {
		case "cover_art":
			if rel.Attributes.FileName != "" {
				s.CoverURL = coverURL(m.ID, rel.Attributes.FileName, detail)
			}
		case "author":
			s.Author = rel.Attributes.Name
		case "artist":
			s.Artist = rel.Attributes.Name
		}
	}

	return s
}

func coverURL(mangaID, fileName string, full bool) string {
	u := fmt.Sprintf("%s/covers/%s/%s", uploadBase, mangaID, fileName)
	if !full {
		u += ".256.jpg"
	}
	return u
}

// pickLocalized returns the first non-empty value among the preferred
// locales, then any value at all.
func pickLocalized(m map[string]string, prefer ...string) string {
	for _, locale := range prefer {
		if v := m[locale]; v != "" {
			return v
		}
	}
	for _, v := range m {
		if v != "" {
			return v
		}
	}
	return ""
}

func convertChapter(ch chapterData, seriesID string) domain.Chapter {
	number, _ := strconv.ParseFloat(ch.Attributes.Chapter, 64)

	out := domain.Chapter{
		ID:        ch.ID,
		SeriesID:  seriesID,
		Number:    number,
		Title:     ch.Attributes.Title,
		Volume:    ch.Attributes.Volume,
		Language:  ch.Attributes.TranslatedLanguage,
		PageCount: ch.Attributes.Pages,
		CreatedAt: ch.Attributes.PublishAt,
	}
	if out.Language == "" {
		out.Language = "en"
	}

	for _, rel := range ch.Relationships {
		if rel.Type == "scanlation_group" {
			out.Scanlator = rel.Attributes.Name
			break
		}
	}
	return out
}

func sortChaptersDesc(chapters []domain.Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Number > chapters[j].Number
	})
}
