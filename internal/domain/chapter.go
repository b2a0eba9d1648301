package domain

import "time"

// Chapter is the canonical chapter record. (SeriesID, Number) is unique
// within the local store; Pages is populated immediately for uploaded
// content and lazily (on first read) for remote sources.
type Chapter struct {
	ID        string    `json:"id"`
	SeriesID  string    `json:"seriesId"`
	Number    float64   `json:"number"` // non-negative, fractional numbers allowed (e.g. 10.5)
	Title     string    `json:"title,omitempty"`
	Volume    string    `json:"volume,omitempty"`
	Language  string    `json:"language,omitempty"`
	Scanlator string    `json:"scanlator,omitempty"`
	PageCount int       `json:"pageCount,omitempty"`
	Pages     []PageRef `json:"pages,omitempty"`
	Views     int64     `json:"views,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// PageRef references one page image of a chapter. Index is 1-based and
// unique within the chapter. Cached flips to true once the page cache has
// confirmed the bytes are on disk.
type PageRef struct {
	Index     int    `json:"index"`
	RemoteURL string `json:"url"`
	Cached    bool   `json:"cached,omitempty"`
}
