package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a stored file is missing on disk.
var ErrNotFound = errors.New("stored file not found")

// FileStore keeps attachment blobs on the local filesystem.
type FileStore struct {
	root string
}

// NewFileStore creates root if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Save writes r under a uuid-prefixed name derived from original and returns
// the stored name and bytes written.
func (s *FileStore) Save(original string, r io.Reader) (string, int64, error) {
	stored := uuid.NewString() + "_" + SanitizeFileName(original)
	path := filepath.Join(s.root, stored)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, err
	}
	return stored, n, nil
}

// Open returns a reader for a stored file.
func (s *FileStore) Open(stored string) (io.ReadCloser, error) {
	path, err := s.resolve(stored)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

// Delete removes a stored file; missing files are ignored.
func (s *FileStore) Delete(stored string) error {
	path, err := s.resolve(stored)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FileStore) resolve(stored string) (string, error) {
	if stored == "" || stored != filepath.Base(stored) || stored == "." || stored == ".." {
		return "", ErrNotFound
	}
	return filepath.Join(s.root, stored), nil
}

// SanitizeFileName strips directories and characters unsafe in a file name.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20, strings.ContainsRune(`<>:"/\|?*`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" || out == "." || out == ".." {
		return "file"
	}
	return out
}
