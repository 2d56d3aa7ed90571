// Package blob provides original-file storage for ingested resources.
// File IDs are opaque, collision-resistant handles generated at
// ingestion; stored paths are never derived from user input.
package blob

import (
	"context"
	"fmt"
	"io"
	"mime"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papertrove/papertrove/pkg/models"
)

// Store defines the interface for blob storage backends.
type Store interface {
	// Put persists the bytes and returns the generated file ID.
	Put(ctx context.Context, tenantID string, data io.Reader, ext string) (string, error)

	// Get opens the stored file and reports its MIME type.
	// Returns models.ErrNotFound when the file does not exist.
	Get(ctx context.Context, tenantID, fileID string) (io.ReadCloser, string, error)

	// Delete removes the stored file. A missing file yields
	// models.ErrNotFound; callers treat that as best-effort.
	Delete(ctx context.Context, tenantID, fileID string) error

	// Stats returns the file count and total bytes for the tenant.
	Stats(ctx context.Context, tenantID string) (int64, int64, error)

	// Close releases resources.
	Close() error
}

// File IDs have the form YYYYMM_<uuid>.<ext>; the embedded year and
// month place the file under {tenant}/{YYYY}/{MM}/ without a lookup.
var fileIDPattern = regexp.MustCompile(`^(\d{4})(\d{2})_([0-9a-f-]{36})(\.[a-z0-9]{1,8})?$`)

// NewFileID generates a file ID for the given extension.
func NewFileID(ext string) string {
	now := time.Now()
	return fmt.Sprintf("%04d%02d_%s%s", now.Year(), int(now.Month()), uuid.New().String(), CleanExt(ext))
}

// ParseFileID splits a file ID into its year, month, and base name.
// Invalid IDs yield models.ErrValidation so malformed handles can never
// escape the tenant's storage prefix.
func ParseFileID(fileID string) (year, month, name string, err error) {
	m := fileIDPattern.FindStringSubmatch(fileID)
	if m == nil {
		return "", "", "", fmt.Errorf("invalid file id %q: %w", fileID, models.ErrValidation)
	}
	return m[1], m[2], m[3] + m[4], nil
}

// CleanExt normalizes a file extension into the ".ext" form, or returns
// an empty string when the extension is unusable.
func CleanExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" || len(ext) > 8 {
		return ""
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return "." + ext
}

// MimeForFileID resolves the MIME type from the ID's extension.
func MimeForFileID(fileID string) string {
	if idx := strings.LastIndexByte(fileID, '.'); idx != -1 {
		if t := mime.TypeByExtension(fileID[idx:]); t != "" {
			return t
		}
	}
	return "application/octet-stream"
}
