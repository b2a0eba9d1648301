// Package images provides cover image download, processing, and storage.
package images

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Storage manages cover files on disk. Thread-safe for concurrent use.
type Storage struct {
	basePath string
	mu       sync.RWMutex
}

// NewStorage creates cover storage under {basePath}/covers/.
func NewStorage(basePath string) (*Storage, error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	storagePath := filepath.Join(basePath, "covers")
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return nil, fmt.Errorf("create covers directory: %w", err)
	}

	return &Storage{basePath: storagePath}, nil
}

// Save stores cover data for a series.
func (s *Storage) Save(seriesID string, imgData []byte) error {
	if seriesID == "" {
		return fmt.Errorf("series ID cannot be empty")
	}
	if len(imgData) == 0 {
		return fmt.Errorf("image data cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.WriteFile(s.Path(seriesID), imgData, 0644); err != nil {
		return fmt.Errorf("write cover file: %w", err)
	}
	return nil
}

// Get retrieves cover data for a series.
func (s *Storage) Get(seriesID string) ([]byte, error) {
	if seriesID == "" {
		return nil, fmt.Errorf("series ID cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.Path(seriesID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("cover not found for %s: %w", seriesID, err)
		}
		return nil, fmt.Errorf("read cover file: %w", err)
	}
	return data, nil
}

// Exists checks whether a cover is stored for a series.
func (s *Storage) Exists(seriesID string) bool {
	if seriesID == "" {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.Path(seriesID))
	return err == nil
}

// Delete removes a stored cover. Removing an absent cover is not an error.
func (s *Storage) Delete(seriesID string) error {
	if seriesID == "" {
		return fmt.Errorf("series ID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(seriesID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cover file: %w", err)
	}
	return nil
}

// Hash computes the SHA256 of a stored cover, hex-encoded for ETag use.
func (s *Storage) Hash(seriesID string) (string, error) {
	data, err := s.Get(seriesID)
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

// Path returns the filesystem path for a series cover. The colon in
// canonical series ids is replaced so the id fits in one path element.
func (s *Storage) Path(seriesID string) string {
	return filepath.Join(s.basePath, strings.ReplaceAll(seriesID, ":", "_")+".jpg")
}
