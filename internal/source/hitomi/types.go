package hitomi

// galleryInfo is the JSON object embedded in a gallery's metadata script
// (var galleryinfo = {...}). Only the consumed fields are declared; the
// gallery ID comes from the request, not the payload.
type galleryInfo struct {
	Title         string        `json:"title"`
	JapaneseTitle string        `json:"japanese_title"`
	Type          string        `json:"type"`
	Language      string        `json:"language"`
	Date          string        `json:"date"`
	Tags          []tagRef      `json:"tags"`
	Artists       []artistRef   `json:"artists"`
	Groups        []groupRef    `json:"groups"`
	Parodies      []parodyRef   `json:"parodys"`
	Characters    []characterRef `json:"characters"`
	Files         []galleryFile `json:"files"`
}

type tagRef struct {
	Tag string `json:"tag"`
}

type artistRef struct {
	Artist string `json:"artist"`
}

type groupRef struct {
	Group string `json:"group"`
}

type parodyRef struct {
	Parody string `json:"parody"`
}

type characterRef struct {
	Character string `json:"character"`
}

type galleryFile struct {
	Name    string `json:"name"`
	Hash    string `json:"hash"`
	HasWebp int    `json:"haswebp"`
	HasAvif int    `json:"hasavif"`
}
