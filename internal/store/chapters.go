package store

import (
	"context"
	"encoding/json/v2"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
)

const chapterPrefix = "chapter:"

// chapterKey builds "chapter:<seriesID>:<padded number>". Zero-padding
// the number keeps Badger's lexicographic iteration in chapter order.
func chapterKey(seriesID string, number float64) []byte {
	return fmt.Appendf(nil, "%s%s:%012.3f", chapterPrefix, seriesID, number)
}

// GetChapters lists a series' saved chapters in ascending number order.
func (s *Store) GetChapters(ctx context.Context, seriesID string) ([]domain.Chapter, error) {
	var chapters []domain.Chapter
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			Prefix:         []byte(chapterPrefix + seriesID + ":"),
			PrefetchValues: true,
		})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var ch domain.Chapter
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &ch)
			})
			if err != nil {
				return err
			}
			chapters = append(chapters, ch)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "get chapters")
	}
	return chapters, nil
}

// GetChapter retrieves one chapter by its upstream chapter ID.
func (s *Store) GetChapter(ctx context.Context, seriesID, chapterID string) (*domain.Chapter, error) {
	chapters, err := s.GetChapters(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	for i := range chapters {
		if chapters[i].ID == chapterID {
			return &chapters[i], nil
		}
	}
	return nil, errors.NotFoundf("chapter %s not in local store", chapterID)
}

// SaveChapters upserts a chapter batch. (seriesID, number) is the unique
// key, so re-saving the same listing never duplicates.
func (s *Store) SaveChapters(ctx context.Context, seriesID string, chapters []domain.Chapter) error {
	if seriesID == "" {
		return errors.Validation("series id is required")
	}

	// Chapter feeds can run to thousands of entries; a write batch
	// sidesteps the single-transaction size limit.
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for i := range chapters {
		ch := chapters[i]
		ch.SeriesID = seriesID

		data, err := json.Marshal(&ch)
		if err != nil {
			return errors.Wrap(err, errors.CodeInternal, "marshal chapter")
		}
		if err := wb.Set(chapterKey(seriesID, ch.Number), data); err != nil {
			return errors.Wrap(err, errors.CodeCacheIO, "save chapters")
		}
	}
	if err := wb.Flush(); err != nil {
		return errors.Wrap(err, errors.CodeCacheIO, "save chapters")
	}

	s.logger.Debug("chapters saved", "series", seriesID, "count", len(chapters))
	return nil
}

// SortChaptersDesc orders chapters newest first for presentation.
func SortChaptersDesc(chapters []domain.Chapter) {
	sort.SliceStable(chapters, func(i, j int) bool {
		return chapters[i].Number > chapters[j].Number
	})
}
