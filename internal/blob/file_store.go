package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore implements Store with one file per key under a data directory.
//
// Writes go through a temporary file and os.Rename so a crash mid-write
// never leaves a torn blob behind.
type FileStore struct {
	// Dir is the absolute path of the data directory.
	Dir string
}

// NewFileStore creates a FileStore rooted at dir. The directory is created
// lazily on the first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

// path maps a blob key to its file path. Keys are restricted to a flat
// namespace; anything resembling a path component is rejected by validKey.
func (s *FileStore) path(key string) string {
	return filepath.Join(s.Dir, key+".json")
}

// validKey rejects keys that could escape the data directory.
func validKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("blob key is empty")
	}
	if strings.ContainsAny(key, "/\\") || strings.Contains(key, "..") {
		return fmt.Errorf("blob key %q contains path separators", key)
	}
	return nil
}

// Load reads the value stored under key.
//
// Returns (nil, nil) when the key has never been written.
func (s *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}

	return data, nil
}

// Save atomically stores value under key.
//
// Creates the data directory if needed, writes to a temporary file in the
// same directory, then renames over the target.
func (s *FileStore) Save(ctx context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(s.Dir, "*.tmp")
	if err != nil {
		return fmt.Errorf("create temp blob: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(value)
	closeErr := tmpFile.Close()

	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write blob %s: %w", key, writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close blob %s: %w", key, closeErr)
	}

	if err := os.Rename(tmpPath, s.path(key)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename blob %s: %w", key, err)
	}

	return nil
}

// Close is a no-op for the file backend.
func (s *FileStore) Close() error {
	return nil
}
