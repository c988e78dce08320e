// Package fileutil writes files owned by the current user only.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// MkdirPrivate creates a directory tree with mode 0700.
func MkdirPrivate(path string) error {
	return os.MkdirAll(path, 0o700)
}

// WriteFileAtomic writes data to path with mode 0600. The data goes to a
// temporary file in the same directory first, so readers never see a
// partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := MkdirPrivate(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	defer os.Remove(name) // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(name, path)
}

// CreateExclusive writes data to path with mode 0600, failing with an
// os.ErrExist error if path already exists.
func CreateExclusive(path string, data []byte) error {
	if err := MkdirPrivate(filepath.Dir(path)); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
