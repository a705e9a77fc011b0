package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DiskStore keeps attachment payloads on the local filesystem under a
// single root directory.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed and returns a store
// over it.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root %s: %w", root, err)
	}
	return &DiskStore{root: root}, nil
}

// nameUnsafeChars matches characters that are not safe in a stored file name.
var nameUnsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeName reduces a suggested file name to a safe basename.
func sanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" || base == "" {
		base = "attachment"
	}
	return nameUnsafeChars.ReplaceAllString(base, "_")
}

// Put writes data under a generated, collision-free path of the form
// <yyyymmdd>/<uuid>_<name> and returns it. The returned path is stable.
func (s *DiskStore) Put(_ context.Context, data []byte, suggestedName string) (string, error) {
	rel := filepath.Join(
		time.Now().UTC().Format("20060102"),
		uuid.New().String()+"_"+sanitizeName(suggestedName),
	)

	full := filepath.Join(s.root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("creating blob directory: %w", err)
	}

	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("writing blob %s: %w", rel, err)
	}

	return rel, nil
}

// resolve maps a stored path back to its location under the root.
// Paths come from untrusted callers, so anything that would escape the
// root (absolute, or climbing via "..") is treated as nonexistent.
func (s *DiskStore) resolve(path string) (string, error) {
	if !filepath.IsLocal(path) {
		return "", fmt.Errorf("blob %s: %w", path, ErrNotFound)
	}
	return filepath.Join(s.root, path), nil
}

// Get reads the payload at path. A path whose underlying file was
// removed externally yields ErrNotFound.
func (s *DiskStore) Get(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("reading blob %s: %w", path, err)
	}
	return data, nil
}

// Delete removes the payload at path.
func (s *DiskStore) Delete(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("blob %s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("deleting blob %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path resolves to a stored object.
func (s *DiskStore) Exists(_ context.Context, path string) bool {
	full, err := s.resolve(path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}
