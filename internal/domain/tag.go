package domain

import "time"

// TagGroup partitions tags into a fixed set of namespaces.
type TagGroup string

// Tag groups. Unknown groups map to GroupCustom.
const (
	GroupGenre       TagGroup = "genre"
	GroupTheme       TagGroup = "theme"
	GroupDemographic TagGroup = "demographic"
	GroupFormat      TagGroup = "format"
	GroupContent     TagGroup = "content"
	GroupCharacter   TagGroup = "character"
	GroupSetting     TagGroup = "setting"
	GroupMood        TagGroup = "mood"
	GroupArtist      TagGroup = "artist"
	GroupAuthor      TagGroup = "author"
	GroupYear        TagGroup = "year"
	GroupStatus      TagGroup = "status"
	GroupLanguage    TagGroup = "language"
	GroupSource      TagGroup = "source"
	GroupCustom      TagGroup = "custom"
)

// TagGroups lists every valid group in display order.
func TagGroups() []TagGroup {
	return []TagGroup{
		GroupGenre, GroupTheme, GroupDemographic, GroupFormat, GroupContent,
		GroupCharacter, GroupSetting, GroupMood, GroupArtist, GroupAuthor,
		GroupYear, GroupStatus, GroupLanguage, GroupSource, GroupCustom,
	}
}

// ParseTagGroup returns the matching group, or GroupCustom for anything
// unrecognized. Never an error: provider taxonomies are open-ended.
func ParseTagGroup(s string) TagGroup {
	g := TagGroup(s)
	for _, known := range TagGroups() {
		if g == known {
			return g
		}
	}
	return GroupCustom
}

// Tag is a normalized tag record. NormalizedName is unique across all tags
// and is the source of truth for tag identity. UsageCount equals the number
// of series currently associated with the tag; the tag index keeps it
// consistent on every tag/untag operation rather than computing it lazily.
type Tag struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalizedName"`
	Group          TagGroup  `json:"group"`
	Description    string    `json:"description,omitempty"`
	SourceRef      string    `json:"sourceRef,omitempty"` // provider-native tag ID, when synced
	UsageCount     int       `json:"usageCount"`
	CreatedAt      time.Time `json:"createdAt,omitzero"`
}
