package pagecache

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"
	"github.com/yomihub/yomihub-server/internal/fetch"
)

// ChapterResult summarizes a chapter download.
type ChapterResult struct {
	Success   int   `json:"success"`
	Failed    int   `json:"failed"`
	Skipped   int   `json:"skipped"`
	TotalSize int64 `json:"totalSize"`
}

// Progress is invoked after every page attempt with pages done so far and
// the chapter total.
type Progress func(done, total int)

// DownloadImage fetches one page into the cache. Idempotent: an already
// cached page is left untouched. The image is written to a temp file and
// renamed into place, so a failed download never leaves a partial page.
func (c *Cache) DownloadImage(ctx context.Context, seriesID, chapterID string, page domain.PageRef, headers map[string]string) (string, error) {
	lock := c.seriesLock(seriesID)
	lock.Lock()
	defer lock.Unlock()

	if path, ok := c.findCached(seriesID, chapterID, page.Index); ok {
		return path, nil
	}

	dest := c.pagePath(seriesID, chapterID, page.Index, page.RemoteURL)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", errors.Wrap(err, errors.CodeCacheIO, "create chapter directory")
	}

	sourceID, _ := domain.SplitID(seriesID)
	resp, err := c.fetcher.Fetch(ctx, sourceID, page.RemoteURL, &fetch.Options{Headers: headers})
	if err != nil {
		return "", err
	}

	tmp := dest + ".part"
	if err := os.WriteFile(tmp, resp.Body, 0644); err != nil {
		os.Remove(tmp)
		return "", errors.Wrap(err, errors.CodeCacheIO, "write page image")
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", errors.Wrap(err, errors.CodeCacheIO, "finalize page image")
	}

	c.touchSeries(seriesID)
	return dest, nil
}

// DownloadChapter fetches every page of a chapter sequentially. A page
// failure is counted and the remaining pages still download; already cached
// pages are skipped. The error return is reserved for context cancellation.
func (c *Cache) DownloadChapter(ctx context.Context, seriesID string, chapter *domain.Chapter, headers map[string]string, progress Progress) (*ChapterResult, error) {
	result := &ChapterResult{}
	total := len(chapter.Pages)

	for i, page := range chapter.Pages {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		if c.IsCached(seriesID, chapter.ID, page.Index) {
			result.Skipped++
		} else {
			path, err := c.DownloadImage(ctx, seriesID, chapter.ID, page, headers)
			if err != nil {
				if ctx.Err() != nil {
					return result, ctx.Err()
				}
				result.Failed++
				c.logger.LogAttrs(ctx, slog.LevelWarn, "page download failed",
					slog.String("series_id", seriesID),
					slog.String("chapter_id", chapter.ID),
					slog.Int("page", page.Index),
					slog.Any("error", err))
			} else {
				result.Success++
				if info, statErr := os.Stat(path); statErr == nil {
					result.TotalSize += info.Size()
				}
			}
		}

		if progress != nil {
			progress(i+1, total)
		}
	}

	c.logger.LogAttrs(ctx, slog.LevelInfo, "chapter download finished",
		slog.String("series_id", seriesID),
		slog.String("chapter_id", chapter.ID),
		slog.Int("success", result.Success),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped),
		slog.Int64("bytes", result.TotalSize))
	return result, nil
}
