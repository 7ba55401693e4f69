package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore persists artifacts under a local root directory by mirror/path.
// Files are written to a temporary name and renamed so readers never see a
// partial artifact.
type DiskStore struct {
	root string
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: strings.TrimSpace(root)}
}

func (s *DiskStore) Put(_ context.Context, mirror, path string, content []byte) error {
	fullPath, err := s.pathFor(mirror, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), fullPath)
}

func (s *DiskStore) Get(_ context.Context, mirror, path string) ([]byte, error) {
	fullPath, err := s.pathFor(mirror, path)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return raw, err
}

func (s *DiskStore) mirrorRoot(mirror string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("store is nil")
	}
	if s.root == "" {
		return "", fmt.Errorf("root is required")
	}
	mirror = strings.TrimSpace(mirror)
	if mirror == "" {
		return "", fmt.Errorf("mirror is required")
	}
	if strings.Contains(mirror, "..") || filepath.IsAbs(mirror) {
		return "", fmt.Errorf("invalid mirror: %s", mirror)
	}
	return filepath.Join(s.root, mirror), nil
}

func (s *DiskStore) pathFor(mirror, path string) (string, error) {
	mirrorRoot, err := s.mirrorRoot(mirror)
	if err != nil {
		return "", err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	if strings.Contains(path, "..") || filepath.IsAbs(path) {
		return "", fmt.Errorf("invalid path: %s", path)
	}
	return filepath.Join(mirrorRoot, filepath.FromSlash(path)), nil
}
