package assets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Files stores asset binaries under <root>/<slug>/<name>.
type Files struct {
	root string
}

// NewFiles returns a file store rooted at root. The directory is created lazily.
func NewFiles(root string) (*Files, error) {
	if root == "" {
		return nil, errors.New("assets: storage root cannot be empty")
	}
	return &Files{root: root}, nil
}

// Path returns the local path for name inside the slug directory.
func (f *Files) Path(slug, name string) string {
	return filepath.Join(f.root, slug, name)
}

// Exists reports whether a regular file is stored at the slug/name location.
func (f *Files) Exists(slug, name string) bool {
	info, err := os.Stat(f.Path(slug, name))
	return err == nil && info.Mode().IsRegular()
}

// Write replaces the file atomically through a temp file in the same directory.
func (f *Files) Write(slug, name string, data []byte) error {
	dir := filepath.Join(f.root, slug)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create asset directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("create temp asset: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close asset: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod asset: %w", err)
	}
	if err := os.Rename(tmpName, f.Path(slug, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename asset: %w", err)
	}
	return nil
}

// Remove deletes a stored file by its local path. Missing files are not an error.
func (f *Files) Remove(localPath string) error {
	if localPath == "" {
		return nil
	}
	if err := os.Remove(localPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// PruneDir removes the slug directory when it no longer holds any files.
func (f *Files) PruneDir(slug string) {
	if slug == "" {
		return
	}
	// os.Remove refuses non-empty directories.
	_ = os.Remove(filepath.Join(f.root, slug))
}
