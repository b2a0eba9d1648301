package store

import (
	"context"
	"encoding/json/v2"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
)

const seriesPrefix = "series:"

// GetSeries retrieves a series by canonical ID.
func (s *Store) GetSeries(ctx context.Context, id string) (*domain.Series, error) {
	key := []byte(seriesPrefix + id)

	var series domain.Series
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &series)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, errors.NotFoundf("series %s not in local store", id)
		}
		return nil, errors.Wrap(err, errors.CodeCacheIO, "get series")
	}
	return &series, nil
}

// SaveSeries upserts a series record. Writes for the same ID are last
// write wins as a whole record, never a field-level merge.
func (s *Store) SaveSeries(ctx context.Context, series *domain.Series) error {
	if series.ID == "" {
		return errors.Validation("series id is required")
	}

	now := time.Now().UTC()
	if series.SavedAt.IsZero() {
		series.SavedAt = now
	}
	if series.UpdatedAt.IsZero() {
		series.UpdatedAt = now
	}

	data, err := json.Marshal(series)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "marshal series")
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(seriesPrefix+series.ID), data)
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheIO, "save series")
	}

	s.Invalidate()
	if err := s.indexer.IndexSeries(ctx, series); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "search index update failed",
			slog.String("id", series.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.LogAttrs(ctx, slog.LevelDebug, "series saved",
		slog.String("id", series.ID),
		slog.String("title", series.Title),
	)
	return nil
}

// DeleteSeries removes a series and all of its chapters.
func (s *Store) DeleteSeries(ctx context.Context, id string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(seriesPrefix + id)); err != nil {
			return err
		}

		// Collect chapter keys first; deleting while iterating the same
		// prefix is undefined.
		prefix := []byte(chapterPrefix + id + ":")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		for _, key := range keys {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheIO, "delete series")
	}

	s.Invalidate()
	if err := s.indexer.DeleteSeries(ctx, id); err != nil {
		s.logger.Warn("search index delete failed", "id", id, "error", err)
	}
	return nil
}

// AllSeries returns the memoized catalog snapshot, reloading from disk
// when the TTL has lapsed.
func (s *Store) AllSeries(ctx context.Context) ([]domain.Series, error) {
	s.mu.RLock()
	if s.snapshot != nil && time.Since(s.snapshotAt) < s.snapshotTTL {
		snapshot := s.snapshot
		s.mu.RUnlock()
		return snapshot, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot != nil && time.Since(s.snapshotAt) < s.snapshotTTL {
		return s.snapshot, nil
	}

	var all []domain.Series
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         []byte(seriesPrefix),
			PrefetchValues: true,
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var series domain.Series
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &series)
			})
			if err != nil {
				return err
			}
			all = append(all, series)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "load series snapshot")
	}

	s.snapshot = all
	s.snapshotAt = time.Now()
	return all, nil
}

// PopularLocal lists saved series by views, then rating.
func (s *Store) PopularLocal(ctx context.Context, limit int) ([]domain.Series, error) {
	all, err := s.AllSeries(ctx)
	if err != nil {
		return nil, err
	}

	sorted := make([]domain.Series, len(all))
	copy(sorted, all)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Views != sorted[j].Views {
			return sorted[i].Views > sorted[j].Views
		}
		return sorted[i].Rating > sorted[j].Rating
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// FilterLocal scans the snapshot with a simple substring title match.
// Full-text search with relevance ranking lives in the search package;
// this is the fallback when the index is unavailable.
func (s *Store) FilterLocal(ctx context.Context, query string, limit int) ([]domain.Series, error) {
	all, err := s.AllSeries(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var matched []domain.Series
	for _, series := range all {
		if strings.Contains(strings.ToLower(series.Title), query) {
			matched = append(matched, series)
			continue
		}
		for _, alt := range series.AltTitles {
			if strings.Contains(strings.ToLower(alt), query) {
				matched = append(matched, series)
				break
			}
		}
	}

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
