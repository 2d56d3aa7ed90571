// Package fs provides a filesystem-backed blob store.
package fs

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/papertrove/papertrove/internal/blob"
	"github.com/papertrove/papertrove/pkg/models"
)

// Store keeps blobs under {root}/{tenant}/{YYYY}/{MM}/{file_id base}.
type Store struct {
	root string
}

var _ blob.Store = (*Store)(nil)

// New creates a filesystem blob store rooted at the given directory.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: root}, nil
}

// Put persists the bytes and returns the generated file ID.
func (s *Store) Put(ctx context.Context, tenantID string, data io.Reader, ext string) (string, error) {
	fileID := blob.NewFileID(ext)
	path, err := s.path(tenantID, fileID)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}

	// Write to a temp file first, then atomic rename.
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(tmpPath) //nolint:errcheck
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) //nolint:errcheck
		return "", fmt.Errorf("rename blob: %w", err)
	}

	return fileID, nil
}

// Get opens the stored file and reports its MIME type.
func (s *Store) Get(ctx context.Context, tenantID, fileID string) (io.ReadCloser, string, error) {
	path, err := s.path(tenantID, fileID)
	if err != nil {
		return nil, "", err
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, "", fmt.Errorf("blob %s: %w", fileID, models.ErrNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("open blob: %w", err)
	}
	return f, blob.MimeForFileID(fileID), nil
}

// Delete removes the stored file.
func (s *Store) Delete(ctx context.Context, tenantID, fileID string) error {
	path, err := s.path(tenantID, fileID)
	if err != nil {
		return err
	}

	err = os.Remove(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("blob %s: %w", fileID, models.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// Stats walks the tenant's directory counting files and bytes.
func (s *Store) Stats(ctx context.Context, tenantID string) (int64, int64, error) {
	dir := filepath.Join(s.root, tenantID)

	var count, bytes int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		count++
		bytes += info.Size()
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, 0, fmt.Errorf("walk blob dir: %w", err)
	}
	return count, bytes, nil
}

// Close releases resources.
func (s *Store) Close() error { return nil }

func (s *Store) path(tenantID, fileID string) (string, error) {
	if tenantID == "" || tenantID != filepath.Base(tenantID) {
		return "", fmt.Errorf("invalid tenant id %q: %w", tenantID, models.ErrValidation)
	}
	year, month, name, err := blob.ParseFileID(fileID)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, tenantID, year, month, name), nil
}
