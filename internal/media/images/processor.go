package images

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/fetch"
)

// Processor downloads series covers and derives their BlurHash placeholder.
type Processor struct {
	storage *Storage
	fetcher *fetch.Client
	logger  *slog.Logger
}

// NewProcessor creates a new Processor instance.
func NewProcessor(storage *Storage, fetcher *fetch.Client, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Processor{
		storage: storage,
		fetcher: fetcher,
		logger:  logger,
	}
}

// ProcessCover fetches the cover for a series, stores it, and returns its
// BlurHash. Best effort throughout: an unreadable image still stores, with
// an empty hash returned. An already stored cover is not refetched unless
// force is set.
func (p *Processor) ProcessCover(ctx context.Context, seriesID, coverURL string, headers map[string]string, force bool) (string, error) {
	if coverURL == "" {
		return "", nil
	}
	if !force && p.storage.Exists(seriesID) {
		data, err := p.storage.Get(seriesID)
		if err == nil {
			hash, _ := ComputeBlurHash(data)
			return hash, nil
		}
	}

	sourceID, _ := domain.SplitID(seriesID)
	resp, err := p.fetcher.Fetch(ctx, sourceID, coverURL, &fetch.Options{Headers: headers})
	if err != nil {
		return "", fmt.Errorf("download cover: %w", err)
	}

	if err := p.storage.Save(seriesID, resp.Body); err != nil {
		return "", fmt.Errorf("store cover: %w", err)
	}

	hash, err := ComputeBlurHash(resp.Body)
	if err != nil {
		p.logger.Warn("failed to compute cover blurhash",
			"series_id", seriesID,
			"error", err)
		return "", nil
	}

	p.logger.Debug("processed cover",
		"series_id", seriesID,
		"size", len(resp.Body),
		"blurhash", hash)
	return hash, nil
}
