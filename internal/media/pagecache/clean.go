package pagecache

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/yomihub/yomihub-server/internal/errors"
)

// Eviction thresholds as fractions of the byte budget. A sweep only starts
// above the high watermark and removes series until usage drops under the
// low one, so back-to-back sweeps do not thrash on the boundary.
const (
	cleanTriggerRatio = 0.90
	cleanTargetRatio  = 0.70
)

// CleanResult reports what an eviction sweep did.
type CleanResult struct {
	Triggered     bool  `json:"triggered"`
	EvictedSeries int   `json:"evictedSeries"`
	FreedBytes    int64 `json:"freedBytes"`
	SizeAfter     int64 `json:"sizeAfter"`
}

type seriesEntry struct {
	name     string
	accessed time.Time
	size     int64
}

// Clean evicts least recently used series directories when the cache is
// over budget. Whole series are removed at a time; a partially cached
// series is worthless for offline reading.
func (c *Cache) Clean(ctx context.Context) (*CleanResult, error) {
	size, err := c.Size(ctx)
	if err != nil {
		return nil, err
	}

	result := &CleanResult{SizeAfter: size}
	trigger := int64(float64(c.maxBytes) * cleanTriggerRatio)
	if size < trigger {
		return result, nil
	}
	result.Triggered = true

	entries, err := os.ReadDir(c.root)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "read cache root")
	}

	candidates := make([]seriesEntry, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, seriesEntry{
			name:     entry.Name(),
			accessed: info.ModTime(),
			size:     c.SeriesSize(entry.Name()),
		})
	}

	// Oldest access first.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].accessed.Before(candidates[j].accessed)
	})

	target := int64(float64(c.maxBytes) * cleanTargetRatio)
	for _, candidate := range candidates {
		if size <= target {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		lock := c.seriesLock(candidate.name)
		lock.Lock()
		err := os.RemoveAll(filepath.Join(c.root, candidate.name))
		lock.Unlock()
		if err != nil {
			c.logger.Warn("failed to evict series", "dir", candidate.name, "error", err)
			continue
		}

		size -= candidate.size
		result.EvictedSeries++
		result.FreedBytes += candidate.size
		c.logger.LogAttrs(ctx, slog.LevelInfo, "evicted cached series",
			slog.String("dir", candidate.name),
			slog.Int64("bytes", candidate.size))
	}

	result.SizeAfter = size
	return result, nil
}
