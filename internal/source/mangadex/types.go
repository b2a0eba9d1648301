package mangadex

import "time"

// API payload shapes. Only the fields the adapter reads are declared.

type mangaListResponse struct {
	Data  []mangaData `json:"data"`
	Total int         `json:"total"`
}

type mangaResponse struct {
	Data *mangaData `json:"data"`
}

type mangaData struct {
	ID            string            `json:"id"`
	Attributes    mangaAttributes   `json:"attributes"`
	Relationships []relationship    `json:"relationships"`
}

type mangaAttributes struct {
	Title            map[string]string   `json:"title"`
	AltTitles        []map[string]string `json:"altTitles"`
	Description      map[string]string   `json:"description"`
	Status           string              `json:"status"`
	ContentRating    string              `json:"contentRating"`
	OriginalLanguage string              `json:"originalLanguage"`
	Year             int                 `json:"year"`
	Tags             []tagData           `json:"tags"`
}

type relationship struct {
	Type       string `json:"type"`
	Attributes struct {
		// cover_art carries FileName, author/artist/scanlation_group
		// carry Name. The rest is ignored.
		FileName string `json:"fileName"`
		Name     string `json:"name"`
	} `json:"attributes"`
}

type tagData struct {
	ID         string `json:"id"`
	Attributes struct {
		Name  map[string]string `json:"name"`
		Group string            `json:"group"`
	} `json:"attributes"`
}

type tagListResponse struct {
	Data []tagData `json:"data"`
}

type chapterFeedResponse struct {
	Data  []chapterData `json:"data"`
	Total int           `json:"total"`
}

type chapterResponse struct {
	Data *chapterData `json:"data"`
}

type chapterData struct {
	ID         string `json:"id"`
	Attributes struct {
		Chapter            string    `json:"chapter"`
		Volume             string    `json:"volume"`
		Title              string    `json:"title"`
		TranslatedLanguage string    `json:"translatedLanguage"`
		ExternalURL        string    `json:"externalUrl"`
		Pages              int       `json:"pages"`
		PublishAt          time.Time `json:"publishAt"`
	} `json:"attributes"`
	Relationships []relationship `json:"relationships"`
}

type atHomeResponse struct {
	BaseURL string `json:"baseUrl"`
	Chapter struct {
		Hash      string   `json:"hash"`
		Data      []string `json:"data"`
		DataSaver []string `json:"dataSaver"`
	} `json:"chapter"`
}
