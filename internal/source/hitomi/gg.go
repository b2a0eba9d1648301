package hitomi

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/yomihub/yomihub-server/internal/errors"
)

// Image hosts rotate on parameters published in a small JavaScript file
// (gg.js). It carries a path component b, a default offset o, and a
// switch statement overriding o for specific image numbers. The file
// changes frequently, so parsed parameters are cached for only a minute.

type ggParams struct {
	B        string
	DefaultO int
	CaseMap  map[int]int
}

var (
	ggBRe       = regexp.MustCompile(`b:\s*['"]([^'"]+)['"]`)
	ggDefaultRe = regexp.MustCompile(`(?:var\s|default:)\s*o\s*=\s*(\d+)`)
	ggCaseRe    = regexp.MustCompile(`case\s+(\d+):(?:\s*o\s*=\s*(\d+))?`)
	ggIfRe      = regexp.MustCompile(`if\s*\(g\s*===?\s*(\d+)\)[\s{]*o\s*=\s*(\d+)`)
)

// parseGG extracts routing parameters from the gg.js source. Fallthrough
// case labels share the assignment of the first labeled case below them.
func parseGG(js string) ggParams {
	params := ggParams{B: "1", CaseMap: make(map[int]int)}

	if m := ggBRe.FindStringSubmatch(js); m != nil {
		params.B = strings.ReplaceAll(m[1], "/", "")
	}
	if m := ggDefaultRe.FindStringSubmatch(js); m != nil {
		params.DefaultO, _ = strconv.Atoi(m[1])
	}

	var pending []int
	for _, m := range ggCaseRe.FindAllStringSubmatch(js, -1) {
		key, _ := strconv.Atoi(m[1])
		pending = append(pending, key)
		if m[2] != "" {
			value, _ := strconv.Atoi(m[2])
			for _, k := range pending {
				params.CaseMap[k] = value
			}
			pending = pending[:0]
		}
	}

	for _, m := range ggIfRe.FindAllStringSubmatch(js, -1) {
		key, _ := strconv.Atoi(m[1])
		value, _ := strconv.Atoi(m[2])
		params.CaseMap[key] = value
	}

	return params
}

// imageNumber derives the host selector from an image hash: the last hex
// character concatenated with the two before it, parsed as hex.
func imageNumber(hash string) (int, error) {
	if len(hash) < 3 {
		return 0, errors.Parsef("image hash %q too short", hash)
	}
	n, err := strconv.ParseInt(hash[len(hash)-1:]+hash[len(hash)-3:len(hash)-1], 16, 32)
	if err != nil {
		return 0, errors.Parsef("image hash %q not hex", hash)
	}
	return int(n), nil
}

// subdomainNum resolves the numeric part of the image host for a hash.
func (g ggParams) subdomainNum(inum int) int {
	if o, ok := g.CaseMap[inum]; ok {
		return o + 1
	}
	return g.DefaultO + 1
}

// imageURL builds the full image URL for one gallery file. avif is
// preferred, then webp, then the original extension.
func imageURL(f galleryFile, gg ggParams) (string, error) {
	ext := "webp"
	switch {
	case f.HasAvif != 0:
		ext = "avif"
	case f.HasWebp != 0:
		ext = "webp"
	default:
		if i := strings.LastIndexByte(f.Name, '.'); i >= 0 && i < len(f.Name)-1 {
			ext = strings.ToLower(f.Name[i+1:])
		}
	}

	inum, err := imageNumber(f.Hash)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("https://%c%d.%s/%s/%d/%s.%s",
		ext[0], gg.subdomainNum(inum), apiDomain, gg.B, inum, f.Hash, ext), nil
}

// thumbnailURL builds a gallery's cover thumbnail from its first file.
func thumbnailURL(gid string, f galleryFile) string {
	inum, err := imageNumber(f.Hash)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("https://tn.%s/bigtn/%s/%d/%s.webp", apiDomain, gid, inum, f.Hash)
}
