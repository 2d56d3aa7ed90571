// Package memory provides an in-memory blob store used for tests and
// development mode.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/papertrove/papertrove/internal/blob"
	"github.com/papertrove/papertrove/pkg/models"
)

// Store implements blob.Store in memory.
type Store struct {
	mu    sync.RWMutex
	blobs map[string]map[string][]byte // tenant -> file id -> bytes
}

var _ blob.Store = (*Store)(nil)

// New creates an empty in-memory blob store.
func New() *Store {
	return &Store{blobs: make(map[string]map[string][]byte)}
}

// Put persists the bytes and returns the generated file ID.
func (s *Store) Put(ctx context.Context, tenantID string, data io.Reader, ext string) (string, error) {
	content, err := io.ReadAll(data)
	if err != nil {
		return "", fmt.Errorf("read blob: %w", err)
	}

	fileID := blob.NewFileID(ext)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blobs[tenantID] == nil {
		s.blobs[tenantID] = make(map[string][]byte)
	}
	s.blobs[tenantID][fileID] = content
	return fileID, nil
}

// Get opens the stored file and reports its MIME type.
func (s *Store) Get(ctx context.Context, tenantID, fileID string) (io.ReadCloser, string, error) {
	s.mu.RLock()
	content, ok := s.blobs[tenantID][fileID]
	s.mu.RUnlock()
	if !ok {
		return nil, "", fmt.Errorf("blob %s: %w", fileID, models.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(content)), blob.MimeForFileID(fileID), nil
}

// Delete removes the stored file.
func (s *Store) Delete(ctx context.Context, tenantID, fileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[tenantID][fileID]; !ok {
		return fmt.Errorf("blob %s: %w", fileID, models.ErrNotFound)
	}
	delete(s.blobs[tenantID], fileID)
	return nil
}

// Stats returns the file count and total bytes for the tenant.
func (s *Store) Stats(ctx context.Context, tenantID string) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count, size int64
	for _, content := range s.blobs[tenantID] {
		count++
		size += int64(len(content))
	}
	return count, size, nil
}

// Close releases resources.
func (s *Store) Close() error { return nil }
