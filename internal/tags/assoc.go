package tags

import (
	"context"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
)

// TagSeries associates a tag with a series. Idempotent. Both index
// directions and the usage count move in one transaction.
func (x *Index) TagSeries(ctx context.Context, seriesID, tagID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if seriesID == "" {
		return errors.Validation("series id is required")
	}

	err := x.db.Update(func(txn *badger.Txn) error {
		forward := []byte(tagSeriesPrefix + tagID + ":" + seriesID)
		if _, err := txn.Get(forward); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		var t domain.Tag
		if err := readTag(txn, tagID, &t); err != nil {
			return err
		}

		if err := txn.Set(forward, nil); err != nil {
			return err
		}
		if err := txn.Set([]byte(seriesTagsPrefix+seriesID+":"+tagID), nil); err != nil {
			return err
		}

		t.UsageCount++
		return writeTag(txn, &t)
	})
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return err
		}
		return errors.Wrap(err, errors.CodeCacheIO, "tag series")
	}
	return nil
}

// UntagSeries removes an association. Idempotent.
func (x *Index) UntagSeries(ctx context.Context, seriesID, tagID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := x.db.Update(func(txn *badger.Txn) error {
		forward := []byte(tagSeriesPrefix + tagID + ":" + seriesID)
		if _, err := txn.Get(forward); errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		} else if err != nil {
			return err
		}

		if err := txn.Delete(forward); err != nil {
			return err
		}
		if err := txn.Delete([]byte(seriesTagsPrefix + seriesID + ":" + tagID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		var t domain.Tag
		if err := readTag(txn, tagID, &t); err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				return nil
			}
			return err
		}
		if t.UsageCount > 0 {
			t.UsageCount--
		}
		return writeTag(txn, &t)
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheIO, "untag series")
	}
	return nil
}

// TagsForSeries returns the tags on a series, sorted by normalized name.
func (x *Index) TagsForSeries(ctx context.Context, seriesID string) ([]domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []domain.Tag
	err := x.db.View(func(txn *badger.Txn) error {
		prefix := []byte(seriesTagsPrefix + seriesID + ":")
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			tagID := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			var t domain.Tag
			if err := readTag(txn, tagID, &t); err != nil {
				// Skip dangling references.
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "read series tags")
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].NormalizedName < out[j].NormalizedName
	})
	return out, nil
}

// SeriesByTag returns the series ids carrying a tag.
func (x *Index) SeriesByTag(ctx context.Context, tagID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []string
	err := x.db.View(func(txn *badger.Txn) error {
		prefix := []byte(tagSeriesPrefix + tagID + ":")
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			out = append(out, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "read tag series")
	}
	return out, nil
}

// SeriesByTags intersects the series sets of all given tags. Only series
// carrying every tag are returned, sorted for stable output. An empty tag
// list yields an empty result.
func (x *Index) SeriesByTags(ctx context.Context, tagIDs []string) ([]string, error) {
	if len(tagIDs) == 0 {
		return nil, nil
	}

	ids, err := x.SeriesByTag(ctx, tagIDs[0])
	if err != nil {
		return nil, err
	}
	candidates := make(map[string]bool, len(ids))
	for _, id := range ids {
		candidates[id] = true
	}

	for _, tagID := range tagIDs[1:] {
		if len(candidates) == 0 {
			break
		}
		ids, err := x.SeriesByTag(ctx, tagID)
		if err != nil {
			return nil, err
		}
		matched := make(map[string]bool, len(ids))
		for _, id := range ids {
			if candidates[id] {
				matched[id] = true
			}
		}
		candidates = matched
	}

	out := make([]string, 0, len(candidates))
	for id := range candidates {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// CleanupSeries removes every tag association for a deleted series.
// Best effort: failures are logged and the sweep continues.
func (x *Index) CleanupSeries(ctx context.Context, seriesID string) error {
	tags, err := x.TagsForSeries(ctx, seriesID)
	if err != nil {
		return err
	}
	for _, t := range tags {
		if err := x.UntagSeries(ctx, seriesID, t.ID); err != nil {
			x.logger.Warn("failed to remove tag from deleted series",
				"series_id", seriesID, "tag_id", t.ID, "error", err)
		}
	}
	return nil
}
