package tags

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/id"
	"github.com/yomihub/yomihub-server/internal/normalize"
	"github.com/yomihub/yomihub-server/internal/source"
)

// SyncSourceTags imports a provider's tag taxonomy. New tags are created
// with the provider's grouping; tags that already exist locally gain the
// provider reference when they have none, and are otherwise left alone so
// local curation wins over provider metadata.
func (x *Index) SyncSourceTags(ctx context.Context, lister source.TagLister) (created int, err error) {
	providerTags, err := lister.Tags(ctx)
	if err != nil {
		return 0, err
	}

	for _, pt := range providerTags {
		normalized := normalize.Tag(pt.Name)
		if normalized == "" {
			continue
		}

		err := x.db.Update(func(txn *badger.Txn) error {
			nameKey := []byte(tagByNamePrefix + normalized)
			item, err := txn.Get(nameKey)
			if err == nil {
				var tagID string
				if err := item.Value(func(val []byte) error {
					tagID = string(val)
					return nil
				}); err != nil {
					return err
				}

				var existing domain.Tag
				if err := readTag(txn, tagID, &existing); err != nil {
					return err
				}
				if existing.SourceRef != "" {
					return nil
				}
				existing.SourceRef = pt.SourceRef
				return writeTag(txn, &existing)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}

			tagID, err := id.Generate("tag")
			if err != nil {
				return err
			}
			t := pt
			t.ID = tagID
			t.NormalizedName = normalized
			t.UsageCount = 0
			t.CreatedAt = time.Now()
			if err := writeTag(txn, &t); err != nil {
				return err
			}
			if err := txn.Set(nameKey, []byte(tagID)); err != nil {
				return err
			}
			created++
			return nil
		})
		if err != nil {
			return created, errors.Wrap(err, errors.CodeCacheIO, "sync source tag")
		}
	}

	x.logger.LogAttrs(ctx, slog.LevelInfo, "synced source tags",
		slog.Int("provider_tags", len(providerTags)),
		slog.Int("created", created))
	return created, nil
}
