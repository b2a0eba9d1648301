// Package store is the local persistent catalog. It is cache-first and
// never calls out to the network: on a miss the API layer runs the
// aggregation orchestrator and writes results back here.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/yomihub/yomihub-server/internal/domain"
)

const defaultSnapshotTTL = 30 * time.Second

// SearchIndexer keeps the full-text index in sync with store writes.
// Set after construction to avoid a circular dependency with the search
// package.
type SearchIndexer interface {
	IndexSeries(ctx context.Context, s *domain.Series) error
	DeleteSeries(ctx context.Context, seriesID string) error
}

// NoopSearchIndexer is for tests and index-less operation.
type NoopSearchIndexer struct{}

func (NoopSearchIndexer) IndexSeries(context.Context, *domain.Series) error { return nil }
func (NoopSearchIndexer) DeleteSeries(context.Context, string) error        { return nil }

// Store wraps a Badger database holding series and chapter records.
// A full-catalog snapshot is memoized in memory with a short TTL so
// concurrent readers inside the window never touch disk.
type Store struct {
	db      *badger.DB
	logger  *slog.Logger
	indexer SearchIndexer

	mu          sync.RWMutex
	snapshot    []domain.Series
	snapshotAt  time.Time
	snapshotTTL time.Duration
}

// New opens the store at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		db:          db,
		logger:      logger,
		indexer:     NoopSearchIndexer{},
		snapshotTTL: defaultSnapshotTTL,
	}, nil
}

// SetSearchIndexer wires the search index. Must be called before
// concurrent use.
func (s *Store) SetSearchIndexer(indexer SearchIndexer) {
	if indexer != nil {
		s.indexer = indexer
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Invalidate drops the memoized snapshot; the next read reloads from
// disk.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.snapshot = nil
	s.snapshotAt = time.Time{}
	s.mu.Unlock()
}

// exists reports whether a key is present.
func (s *Store) exists(key []byte) (bool, error) {
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
