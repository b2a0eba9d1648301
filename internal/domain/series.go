// Package domain defines the canonical record shapes that every source
// adapter normalizes into and that the local store persists.
package domain

import (
	"strings"
	"time"
)

// Status is the publication status of a series.
type Status string

// Publication statuses. Adapters normalize provider-specific strings into
// one of these via normalize.Status.
const (
	StatusOngoing   Status = "ongoing"
	StatusCompleted Status = "completed"
	StatusHiatus    Status = "hiatus"
	StatusCancelled Status = "cancelled"
	StatusUnknown   Status = "unknown"
)

// Series is the canonical, provider-agnostic series record.
//
// ID is source-prefixed ("<source>:<nativeID>") and stable for the life of
// the record. Records from different sources are never merged into one ID;
// deduplication happens on ID equality only, never on title similarity.
type Series struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"sourceId"`
	Slug        string    `json:"slug,omitempty"` // provider-native identifier
	Title       string    `json:"title"`
	AltTitles   []string  `json:"altTitles,omitempty"`
	Description string    `json:"description,omitempty"`
	CoverURL    string    `json:"coverUrl,omitempty"`
	BlurHash    string    `json:"blurHash,omitempty"`
	Author      string    `json:"author,omitempty"`
	Artist      string    `json:"artist,omitempty"`
	Status      Status    `json:"status"`
	Tags        []string  `json:"tags,omitempty"`
	Genres      []string  `json:"genres,omitempty"`
	Language    string    `json:"language,omitempty"`
	Adult       bool      `json:"adult"`
	Rating      float64   `json:"rating,omitempty"`
	Views       int64     `json:"views,omitempty"`
	ChapterCount int      `json:"chapterCount,omitempty"`
	SavedAt     time.Time `json:"savedAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// SeriesID builds a canonical source-prefixed series ID.
func SeriesID(sourceID, nativeID string) string {
	return sourceID + ":" + nativeID
}

// SplitID splits a canonical ID into its source and native parts.
// The native part may itself contain colons (e.g. UUID-free slugs are rare
// but chapter paths are not), so only the first separator is significant.
func SplitID(id string) (sourceID, nativeID string) {
	source, native, found := strings.Cut(id, ":")
	if !found {
		return "", id
	}
	return source, native
}

// HasTag reports whether the series carries the given tag or genre,
// compared case-insensitively.
func (s *Series) HasTag(name string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	for _, g := range s.Genres {
		if strings.EqualFold(g, name) {
			return true
		}
	}
	return false
}
