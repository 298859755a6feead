package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStore is the filesystem side of the pipeline: the media working tree
// where originals live and derived artifacts are rendered, plus the device
// probes the encoder needs.
type LocalStore struct {
	root string
}

func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Root returns the media working tree root.
func (s *LocalStore) Root() string {
	return s.root
}

// EnsureDir creates the parent directory of path.
func (s *LocalStore) EnsureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure dir for %s: %w", path, err)
	}
	return nil
}

// Unlink removes a file; a missing file is not an error.
func (s *LocalStore) Unlink(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("unlink %s: %w", path, err)
	}
	return nil
}

// Stat reports file info for path.
func (s *LocalStore) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// MoveOrRename moves a file, falling back to copy+remove across devices.
func (s *LocalStore) MoveOrRename(oldPath, newPath string) error {
	if err := s.EnsureDir(newPath); err != nil {
		return err
	}
	if err := os.Rename(oldPath, newPath); err == nil {
		return nil
	}

	src, err := os.Open(oldPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", oldPath, err)
	}
	defer src.Close()

	dst, err := os.Create(newPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", newPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy %s: %w", oldPath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", newPath, err)
	}
	return os.Remove(oldPath)
}

// ReadDir lists directory entry names; used to discover render devices
// under /dev/dri.
func (s *LocalStore) ReadDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
