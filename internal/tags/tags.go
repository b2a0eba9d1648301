// Package tags maintains the local tag index: normalized tag records, their
// series associations, and usage counts, all backed by Badger.
//
// Tag identity is the normalized name. Create is idempotent: creating a tag
// whose name normalizes to an existing one returns the existing record.
// Associations and usage counts are updated in a single transaction so a
// crash can never leave the count out of step with the index entries.
package tags

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/id"
	"github.com/yomihub/yomihub-server/internal/normalize"
)

// Key prefixes.
const (
	tagPrefix        = "tag:"             // tag:{id} → Tag JSON
	tagByNamePrefix  = "idx:tags:name:"   // idx:tags:name:{normalized} → tagID
	tagSeriesPrefix  = "idx:tags:series:" // idx:tags:series:{tagID}:{seriesID} → empty
	seriesTagsPrefix = "idx:series:tags:" // idx:series:tags:{seriesID}:{tagID} → empty
)

// Index is the badger-backed tag index.
type Index struct {
	db     *badger.DB
	logger *slog.Logger
}

// New opens the tag index at path.
func New(path string, logger *slog.Logger) (*Index, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "open tag index")
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Index{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (x *Index) Close() error {
	return x.db.Close()
}

// Create adds a tag, or returns the existing one when the name normalizes
// to a tag already present. The second return reports whether a new record
// was created.
func (x *Index) Create(ctx context.Context, name string, group domain.TagGroup, description string) (*domain.Tag, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	normalized := normalize.Tag(name)
	if normalized == "" {
		return nil, false, errors.Validationf("tag name %q normalizes to nothing", name)
	}

	if existing, err := x.GetByName(ctx, normalized); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, errors.ErrNotFound) {
		return nil, false, err
	}

	tagID, err := id.Generate("tag")
	if err != nil {
		return nil, false, errors.Wrap(err, errors.CodeInternal, "generate tag id")
	}

	t := &domain.Tag{
		ID:             tagID,
		Name:           strings.TrimSpace(name),
		NormalizedName: normalized,
		Group:          group,
		Description:    description,
		CreatedAt:      time.Now(),
	}

	err = x.db.Update(func(txn *badger.Txn) error {
		nameKey := []byte(tagByNamePrefix + normalized)
		if _, err := txn.Get(nameKey); err == nil {
			return errors.Conflict("tag already exists")
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(tagPrefix+t.ID), data); err != nil {
			return err
		}
		return txn.Set(nameKey, []byte(t.ID))
	})
	if err != nil {
		if errors.Is(err, errors.ErrConflict) {
			// Lost a race with a concurrent create; the winner's record is
			// equivalent.
			existing, getErr := x.GetByName(ctx, normalized)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, false, nil
		}
		return nil, false, errors.Wrap(err, errors.CodeCacheIO, "create tag")
	}

	x.logger.LogAttrs(ctx, slog.LevelDebug, "created tag",
		slog.String("tag_id", t.ID),
		slog.String("name", t.NormalizedName),
		slog.String("group", string(t.Group)))
	return t, true, nil
}

// Get retrieves a tag by ID.
func (x *Index) Get(ctx context.Context, tagID string) (*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var t domain.Tag
	err := x.db.View(func(txn *badger.Txn) error {
		return readTag(txn, tagID, &t)
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetByName retrieves a tag by name. The name is normalized before lookup,
// so any spelling that maps to the same slug resolves the same tag.
func (x *Index) GetByName(ctx context.Context, name string) (*domain.Tag, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var tagID string
	err := x.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(tagByNamePrefix + normalize.Tag(name)))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return errors.NotFoundf("tag %q not found", name)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			tagID = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return x.Get(ctx, tagID)
}

// Delete removes a tag and every series association pointing at it.
func (x *Index) Delete(ctx context.Context, tagID string) error {
	t, err := x.Get(ctx, tagID)
	if err != nil {
		return err
	}

	err = x.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(tagPrefix + tagID)); err != nil {
			return err
		}
		if err := txn.Delete([]byte(tagByNamePrefix + t.NormalizedName)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		prefix := []byte(tagSeriesPrefix + tagID + ":")
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		var toDelete [][]byte
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			toDelete = append(toDelete, key)
			seriesID := strings.TrimPrefix(string(key), string(prefix))
			toDelete = append(toDelete, []byte(seriesTagsPrefix+seriesID+":"+tagID))
		}

		for _, k := range toDelete {
			if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheIO, "delete tag")
	}
	return nil
}

// readTag loads a tag record inside a transaction.
func readTag(txn *badger.Txn, tagID string, t *domain.Tag) error {
	item, err := txn.Get([]byte(tagPrefix + tagID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return errors.NotFoundf("tag %s not found", tagID)
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, t)
	})
}

// writeTag stores a tag record inside a transaction.
func writeTag(txn *badger.Txn, t *domain.Tag) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return txn.Set([]byte(tagPrefix+t.ID), data)
}
