// Package search provides full-text search over the locally cached catalog
// using Bleve. It covers titles, alternate titles, creators, and tags with
// fuzzy matching and faceted filtering.
package search

import (
	"github.com/yomihub/yomihub-server/internal/domain"
)

// Document is the shape stored in the Bleve index, one per cached series.
//
// Alternate titles are denormalized into a single multi-valued text field so
// a romaji or native-script query hits the same document as the display
// title would.
type Document struct {
	ID          string   `json:"id"`
	SourceID    string   `json:"source_id"`
	Title       string   `json:"title"`
	AltTitles   []string `json:"alt_titles,omitempty"`
	Description string   `json:"description,omitempty"`
	Author      string   `json:"author,omitempty"`
	Artist      string   `json:"artist,omitempty"`
	Status      string   `json:"status"`
	Tags        []string `json:"tags,omitempty"`
	Genres      []string `json:"genres,omitempty"`
	Language    string   `json:"language,omitempty"`
	Adult       bool     `json:"adult"`
	Rating      float64  `json:"rating,omitempty"`
	Views       int64    `json:"views,omitempty"`
	UpdatedAt   int64    `json:"updated_at"` // Unix millis
}

// ToMap converts the document to a map with lowercase field names.
// Bleve indexes Go struct field names (capitalized) by default, but the
// mapping uses lowercase names, so we convert explicitly.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"source_id":  d.SourceID,
		"title":      d.Title,
		"status":     d.Status,
		"adult":      d.Adult,
		"updated_at": d.UpdatedAt,
	}

	if len(d.AltTitles) > 0 {
		m["alt_titles"] = d.AltTitles
	}
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.Author != "" {
		m["author"] = d.Author
	}
	if d.Artist != "" {
		m["artist"] = d.Artist
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if len(d.Genres) > 0 {
		m["genres"] = d.Genres
	}
	if d.Language != "" {
		m["language"] = d.Language
	}
	if d.Rating > 0 {
		m["rating"] = d.Rating
	}
	if d.Views > 0 {
		m["views"] = d.Views
	}

	return m
}

// SeriesToDocument converts a cached series record to its index document.
func SeriesToDocument(s *domain.Series) *Document {
	return &Document{
		ID:          s.ID,
		SourceID:    s.SourceID,
		Title:       s.Title,
		AltTitles:   s.AltTitles,
		Description: s.Description,
		Author:      s.Author,
		Artist:      s.Artist,
		Status:      string(s.Status),
		Tags:        s.Tags,
		Genres:      s.Genres,
		Language:    s.Language,
		Adult:       s.Adult,
		Rating:      s.Rating,
		Views:       s.Views,
		UpdatedAt:   s.UpdatedAt.UnixMilli(),
	}
}
