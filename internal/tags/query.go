package tags

import (
	"context"
	"encoding/json/v2"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/normalize"
)

// Stats summarizes the tag index.
type Stats struct {
	TotalTags         int                     `json:"totalTags"`
	TotalAssociations int                     `json:"totalAssociations"`
	ByGroup           map[domain.TagGroup]int `json:"byGroup"`
}

// All returns every tag, ordered by usage count descending then name.
func (x *Index) All(ctx context.Context) ([]domain.Tag, error) {
	tags, err := x.scan(ctx, func(*domain.Tag) bool { return true })
	if err != nil {
		return nil, err
	}
	sortByUsage(tags)
	return tags, nil
}

// Search returns tags whose normalized name contains the query.
func (x *Index) Search(ctx context.Context, query string, limit int) ([]domain.Tag, error) {
	needle := normalize.Tag(query)
	if needle == "" {
		return nil, nil
	}

	tags, err := x.scan(ctx, func(t *domain.Tag) bool {
		return strings.Contains(t.NormalizedName, needle)
	})
	if err != nil {
		return nil, err
	}
	sortByUsage(tags)
	return truncate(tags, limit), nil
}

// ByGroup returns tags in a group, ordered by usage.
func (x *Index) ByGroup(ctx context.Context, group domain.TagGroup) ([]domain.Tag, error) {
	tags, err := x.scan(ctx, func(t *domain.Tag) bool {
		return t.Group == group
	})
	if err != nil {
		return nil, err
	}
	sortByUsage(tags)
	return tags, nil
}

// Popular returns the most used tags.
func (x *Index) Popular(ctx context.Context, limit int) ([]domain.Tag, error) {
	if limit <= 0 {
		limit = 20
	}
	tags, err := x.All(ctx)
	if err != nil {
		return nil, err
	}
	return truncate(tags, limit), nil
}

// Stats counts tags, associations, and the group breakdown.
func (x *Index) Stats(ctx context.Context) (*Stats, error) {
	tags, err := x.All(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByGroup: make(map[domain.TagGroup]int)}
	for _, t := range tags {
		stats.TotalTags++
		stats.TotalAssociations += t.UsageCount
		stats.ByGroup[t.Group]++
	}
	return stats, nil
}

// scan iterates all tag records, keeping those the predicate accepts.
func (x *Index) scan(ctx context.Context, keep func(*domain.Tag) bool) ([]domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(tagPrefix)
	var out []domain.Tag

	err := x.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchSize = 100

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var t domain.Tag
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			})
			if err != nil {
				continue
			}
			if keep(&t) {
				out = append(out, t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "scan tags")
	}
	return out, nil
}

func sortByUsage(tags []domain.Tag) {
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].UsageCount != tags[j].UsageCount {
			return tags[i].UsageCount > tags[j].UsageCount
		}
		return tags[i].NormalizedName < tags[j].NormalizedName
	})
}

func truncate(tags []domain.Tag, limit int) []domain.Tag {
	if limit > 0 && len(tags) > limit {
		return tags[:limit]
	}
	return tags
}
