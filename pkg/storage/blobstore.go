package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BlobStore persists uploaded case documents on disk, keyed by a generated
// blob identifier. Callers store only the identifier; file contents never
// leave this package except as streams.
type BlobStore struct {
	baseDir string
}

// NewBlobStore ensures the base directory exists and returns a handle.
func NewBlobStore(baseDir string) (*BlobStore, error) {
	if baseDir == "" {
		baseDir = "./blobs"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}
	return &BlobStore{baseDir: baseDir}, nil
}

// Save writes the given bytes under a fresh blob id and returns it.
func (s *BlobStore) Save(data []byte, ext string) (string, error) {
	blobID := newBlobID(ext)
	if err := os.WriteFile(s.resolve(blobID), data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return blobID, nil
}

// SaveStream copies from the reader into a fresh blob and returns its id.
func (s *BlobStore) SaveStream(r io.Reader, ext string) (string, error) {
	blobID := newBlobID(ext)
	file, err := os.Create(s.resolve(blobID))
	if err != nil {
		return "", fmt.Errorf("create blob file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		_ = os.Remove(s.resolve(blobID))
		return "", fmt.Errorf("write blob stream: %w", err)
	}
	return blobID, nil
}

// Open returns a read-only handle for the stored blob.
func (s *BlobStore) Open(blobID string) (*os.File, error) {
	path, err := s.safeResolve(blobID)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return file, nil
}

// Delete removes a stored blob if present.
func (s *BlobStore) Delete(blobID string) error {
	path, err := s.safeResolve(blobID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// ListOlderThan returns blob ids whose files are older than the given age.
// Used by the orphan sweep to find blobs whose recording transaction never
// committed.
func (s *BlobStore) ListOlderThan(age time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-age)
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list blobs: %w", err)
	}
	ids := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, err
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		ids = append(ids, entry.Name())
	}
	return ids, nil
}

// Path exposes the underlying absolute path (useful for debugging).
func (s *BlobStore) Path(blobID string) string {
	return s.resolve(blobID)
}

func (s *BlobStore) resolve(blobID string) string {
	return filepath.Join(s.baseDir, blobID)
}

func (s *BlobStore) safeResolve(blobID string) (string, error) {
	if blobID == "" || strings.ContainsAny(blobID, `/\`) || strings.Contains(blobID, "..") {
		return "", fmt.Errorf("invalid blob id %q", blobID)
	}
	return s.resolve(blobID), nil
}

func newBlobID(ext string) string {
	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	id := uuid.NewString()
	if ext == "" {
		return id
	}
	return id + "." + ext
}
