package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// Matches spaces, underscores, and slashes (for replacement with dashes).
	wordSeparatorRe = regexp.MustCompile(`[\s_/]+`)
	// Matches non-alphanumeric characters (except dashes).
	nonAlphanumericRe = regexp.MustCompile(`[^a-z0-9-]`)
	// Matches multiple consecutive dashes.
	multipleDashRe = regexp.MustCompile(`-+`)
)

// Tag converts user or provider input to a canonical tag slug. The slug is
// the source of truth for tag identity: two names normalizing to the same
// slug are the same tag.
//
// Rules:
//  1. NFKC-fold, trim whitespace and lowercase
//  2. Replace spaces, underscores and slashes with dashes
//  3. Remove non-alphanumeric characters (except dashes)
//  4. Collapse multiple dashes, trim leading/trailing dashes
//
// Examples:
//
//	"Slow Burn"   → "slow-burn"
//	"SLOW_BURN"   → "slow-burn"
//	"  Big  Gun " → "big-gun"
func Tag(input string) string {
	s := strings.ToLower(strings.TrimSpace(norm.NFKC.String(input)))
	s = wordSeparatorRe.ReplaceAllString(s, "-")
	s = nonAlphanumericRe.ReplaceAllString(s, "")
	s = multipleDashRe.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
